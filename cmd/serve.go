package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/mediatext/config"
	"github.com/nijaru/mediatext/handlers"
	"github.com/nijaru/mediatext/metrics"
	"github.com/nijaru/mediatext/pipeline"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transcription HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, closer, err := setup(func(c *config.Config) {
		if port != "" {
			c.Server.Port = port
		}
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	entry := logrus.NewEntry(log)
	m := metrics.New()

	orch, err := pipeline.New(cfg, pipeline.WithLogger(entry))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.New(cfg, orch, m, entry).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- errors.Wrapf(err, "could not listen on :%s", cfg.Server.Port)
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info("Shutting down the server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	return nil
}
