// Package storage keeps finished runs on disk so they can be listed, plotted
// and exported later. Each run is a directory holding metadata.json,
// config.yaml and samples.csv. Nothing is resumed from disk: a stored run is
// an output, not simulation state.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/export"
	"github.com/san-kum/thermsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	samplesFile  = "samples.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Model     string             `json:"model"`
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Setpoint  float64            `json:"setpoint"`
	Steps     int                `json:"steps"`
	Final     float64            `json:"final"`
	Overshoot float64            `json:"overshoot"`
	Metrics   map[string]float64 `json:"metrics"`
	Windows   []sim.Window       `json:"windows,omitempty"`
}

// Save writes a run under a new id of the form <name>_<uuid prefix>.
func (s *Store) Save(name string, cfg *config.Config, result *sim.Result) (string, error) {
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%s", name, strings.SplitN(uuid.NewString(), "-", 2)[0])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	model := cfg.Plant.Model
	if cfg.Plant.Custom != nil {
		model = cfg.Plant.Custom.Name
	}
	mode := string(cfg.Controller.Mode)
	if mode == "" {
		mode = "pid"
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Model:     model,
		Mode:      mode,
		Timestamp: time.Now(),
		Dt:        cfg.Run.Dt,
		Duration:  cfg.Run.Duration,
		Setpoint:  cfg.Run.Setpoint,
		Steps:     len(result.Samples),
		Final:     result.Final,
		Overshoot: result.Overshoot,
		Metrics:   result.Metrics,
		Windows:   result.Windows,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := export.WriteCSV(f, result); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.path(runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %w", metadataFile, err)
	}
	return &meta, nil
}

// LoadResult rebuilds the result of a stored run from its samples and
// metadata.
func (s *Store) LoadResult(runID string) (*sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := export.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return &sim.Result{
		Samples:   samples,
		Final:     meta.Final,
		Overshoot: meta.Overshoot,
		Metrics:   meta.Metrics,
		Windows:   meta.Windows,
	}, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}
	return config.Load(s.path(runID, configFile))
}

// Latest returns the id of the most recent run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrRunNotFound
	}
	return runs[0].ID, nil
}

func (s *Store) path(runID, file string) string {
	return filepath.Join(s.baseDir, filepath.Base(runID), file)
}
