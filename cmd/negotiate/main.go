package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"paylesscars/internal/cli"
	"paylesscars/internal/negotiation/client"
	"paylesscars/internal/negotiation/snapshot"
	"paylesscars/internal/negotiation/store"
	"paylesscars/platform/config"
	"paylesscars/platform/logger"

	"github.com/fatih/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(openSession).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("Error:"), err)
		os.Exit(1)
	}
}

// openSession builds a store for the user named by the configured token.
// The redis warm cache is optional; a failure to reach it only costs the
// first listing a round trip.
func openSession(ctx context.Context) (*cli.Session, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	userID, err := client.UserIDFromToken(cfg.GetAPIToken())
	if err != nil {
		return nil, fmt.Errorf("NEGOTIATION_API_TOKEN: %w", err)
	}

	opts := []store.Option{
		store.WithLogger(log),
		store.WithPageSize(cfg.GetAPIPageSize()),
	}

	var snapshots *snapshot.RedisStore
	if cfg.IsSnapshotEnabled() {
		snapshots, err = snapshot.Open(ctx, cfg)
		if err != nil {
			log.Warn("snapshot cache unavailable", "error", err)
		} else {
			opts = append(opts, store.WithSnapshotStore(snapshots))
		}
	}

	st := store.New(client.New(cfg, log), userID, opts...)
	if err := st.Warm(ctx); err != nil {
		log.Warn("failed to warm negotiation cache", "error", err)
	}

	return &cli.Session{
		Store: st,
		Close: func(ctx context.Context) error {
			err := st.Close(ctx)
			if snapshots != nil {
				err = errors.Join(err, snapshots.Close())
			}
			return err
		},
	}, nil
}
