package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/listingwizard/internal/db"
	"github.com/vbonduro/listingwizard/internal/logging"
	"github.com/vbonduro/listingwizard/internal/schema"
	"github.com/vbonduro/listingwizard/internal/store"
	"github.com/vbonduro/listingwizard/internal/submit"
	"github.com/vbonduro/listingwizard/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizard HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, cleanup, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	sc, err := schema.Default()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	sessions := web.NewSessions(sc, web.SessionConfig{
		Storage:     store.NewDraftStore(database),
		Submitter:   submit.NewHTTPSubmitter(cfg.SubmitURL, cfg.SubmitTimeout),
		SpoolRoot:   cfg.SpoolPath,
		KeyPrefix:   cfg.DraftKey,
		PhotoLimit:  cfg.PhotoQuota,
		IdleTimeout: cfg.SessionIdle,
	}, logger)
	defer sessions.Close()

	server := web.NewServer(sc, sessions, cfg.MaxPhotoBytes, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sessions.RunEviction(ctx)

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("server stopped")
	}
	return nil
}
