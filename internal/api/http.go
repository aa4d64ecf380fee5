package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/export"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/storage"
)

type presetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type simulateResponse struct {
	RunID string `json:"run_id,omitempty"`
	export.Document
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	names := config.ListPresets()
	out := make([]presetInfo, 0, len(names))
	for _, n := range names {
		out = append(out, presetInfo{Name: n, Description: config.Presets[n].Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.GetPreset(mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// simulate runs a full config document. A "preset" field selects the base.
func (s *Server) simulate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body", "")
		return
	}
	cfg, err := config.Parse(body, json.Unmarshal)
	if err != nil {
		s.fail(w, err)
		return
	}
	name := cfg.Preset
	if name == "" {
		name = "custom"
	}
	s.run(w, r, name, cfg)
}

// simulatePreset runs a preset, optionally overlaid with a partial document.
func (s *Server) simulatePreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	cfg, err := config.GetPreset(name)
	if err != nil {
		s.fail(w, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, cfg); err != nil {
			s.fail(w, err)
			return
		}
	}
	s.run(w, r, name, cfg)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, name string, cfg *config.Config) {
	res, err := runConfig(r, cfg)
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := simulateResponse{Document: export.NewDocument(name, res)}
	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if s.store == nil {
			writeError(w, http.StatusNotImplemented, "run storage is disabled", "")
			return
		}
		id, err := s.store.Save(name, cfg, res)
		if err != nil {
			s.fail(w, err)
			return
		}
		resp.RunID = id
	}
	s.log.Info("simulated", "name", name, "steps", len(res.Samples), "final", res.Final, "run_id", resp.RunID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) presetChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cfg, err := config.GetPreset(vars["name"])
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := runConfig(r, cfg)
	if err != nil {
		s.fail(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteChart(&buf, res, vars["format"], export.ChartOptions{Title: vars["name"]}); err != nil {
		s.fail(w, err)
		return
	}
	if vars["format"] == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.RunMetadata{})
		return
	}
	runs, err := s.store.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.fail(w, storage.ErrRunNotFound)
		return
	}
	meta, err := s.store.Load(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) runSamples(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.fail(w, storage.ErrRunNotFound)
		return
	}
	res, err := s.store.LoadResult(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, res); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func runConfig(r *http.Request, cfg *config.Config) (*sim.Result, error) {
	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	return experiment.New(p).Run(r.Context())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return b, nil
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		cfgErr    *sim.ConfigError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, config.ErrUnknownPreset), errors.Is(err, storage.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, err.Error(), cfgErr.Field)
	case errors.Is(err, experiment.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, err.Error(), "plant")
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error(), "")
	default:
		s.log.Error("request_failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, field string) {
	writeJSON(w, code, errorResponse{Error: msg, Field: field})
}
