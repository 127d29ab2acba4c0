package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/parametric-ai/searchdocs/pkg/assistant"
	"github.com/parametric-ai/searchdocs/pkg/cache"
	"github.com/parametric-ai/searchdocs/pkg/config"
	"github.com/parametric-ai/searchdocs/pkg/search"
	"github.com/parametric-ai/searchdocs/pkg/server"
	"github.com/parametric-ai/searchdocs/pkg/tracker"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search-docs plugin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; the environment may already be set.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.LogLevel)
			if cfg.Backend.VectorStoreID == "" {
				logger.Warn().Msg("no vector store configured; searches will return a configuration notice")
			}

			var tr tracker.Tracker
			if cfg.DBPath != "" {
				st, err := tracker.New(cfg.DBPath)
				if err != nil {
					return err
				}
				defer st.Close()
				tr = st
			}

			client := assistant.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, logger)
			registrar := assistant.NewRegistrar(client, cfg.Backend.AssistantName, cfg.Backend.Model, logger)

			var answerCache *cache.Cache
			if cfg.Cache.Enabled {
				answerCache = cache.New(cfg.Cache.TTL)
			}

			orch := search.New(cfg, answerCache, registrar, client, logger)
			srv := server.New(cfg, orch, tr, logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
