// zkmemd runs the note memory daemon: it owns the durable SQLite store, the
// remote index client, and the periodic retry-queue flush, and shuts all of
// them down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/config"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/logger"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/internal/store"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/graph"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/notes"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/remote"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/router"
	"github.com/nasatome/mcp-zettelkasten-notes-mem0/pkg/syncer"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	st, err := store.NewSQLiteStoreWithDSN(cfg.DBPath, log.With().Str("component", "store").Logger())
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("Failed to open durable store")
	}
	defer st.Close()

	remoteClient := remote.NewClient(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		APIKey:  cfg.RemoteAPIKey,
		Timeout: cfg.RemoteTimeout(),
		Logger:  log.With().Str("component", "remote").Logger(),
	})

	sy := syncer.New(syncer.Config{
		Index:  remoteClient,
		Store:  st,
		Logger: log.With().Str("component", "syncer").Logger(),
	})

	sched, err := syncer.NewScheduler(sy, cfg.FlushInterval(), log.With().Str("component", "scheduler").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build flush scheduler")
	}

	svc := notes.New(notes.Config{
		Store:  st,
		Syncer: sy,
		Linker: graph.New(st, log.With().Str("component", "graph").Logger()),
		Reader: router.New(router.Config{
			Remote: remoteClient,
			Store:  st,
			Logger: log.With().Str("component", "router").Logger(),
		}),
		Logger: log.With().Str("component", "notes").Logger(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noteCount, _ := st.CountNotes()
	pending, _ := st.CountRetries()
	log.Info().
		Str("db", cfg.DBPath).
		Str("remote", cfg.RemoteBaseURL).
		Int("notes", noteCount).
		Int("pendingRetries", pending).
		Msg("zkmemd starting")

	// Reachability probe: a search that degrades tells us the remote is down
	// without failing startup.
	if res, err := svc.SearchNotes(ctx, "connectivity probe"); err == nil {
		log.Info().Str("via", res.Via).Msg("Search path ready")
	} else {
		log.Warn().Err(err).Msg("Search path probe failed")
	}

	sched.Start()
	log.Info().Dur("interval", cfg.FlushInterval()).Msg("Flush scheduler started")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	sched.Stop()
	sy.Wait()
	log.Info().Msg("zkmemd stopped")
}
