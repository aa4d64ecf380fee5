package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/thermsim/internal/api"
	"github.com/san-kum/thermsim/internal/storage"
)

var addr string

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve presets and simulations over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func serve(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(st, logger.Logger).Handler(os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "data", dataDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting_down")
	return srv.Shutdown(shutdownCtx)
}
