package main

import (
	"complaintdesk/backend/internal/assignment"
	"complaintdesk/backend/internal/bulk"
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/identity"
	"complaintdesk/backend/internal/lifecycle"
	"complaintdesk/backend/internal/notify"
	"complaintdesk/backend/internal/storage"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	okColor      = color.New(color.FgHiGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	idColor      = color.New(color.FgCyan)
	headingColor = color.New(color.Bold)
)

// cliEnv holds the services commands run against.
type cliEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Service
	rdb    *redis.Client

	complaints  *complaint.Service
	assignments *assignment.Service
	bulk        *bulk.Service
	tokens      *identity.Provider
}

var env cliEnv

func (e *cliEnv) open(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	e.store = storage.NewStorageService(db, e.logger)

	// Changes made here reach live viewers only if Redis is up.
	var live complaint.Publisher
	e.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err := e.rdb.Ping(cmd.Context()).Err(); err != nil {
		e.logger.Warn("redis unavailable, live viewers will not see changes", "error", err)
	} else {
		live = chathub.NewRedisBroker(e.rdb, e.logger)
	}

	machine := lifecycle.NewMachine(lifecycle.Policy{ClosedTerminal: cfg.ClosedTerminal})
	e.complaints = complaint.NewService(e.store, machine, live, e.logger)
	// Notices go through the configured channel. Log notices print at info
	// so an operator sees them; the Telegram poller only runs in the server.
	notifier, err := notify.FromConfig(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		return err
	}
	e.assignments = assignment.NewService(e.store, e.complaints, notifier, e.logger)
	e.bulk = bulk.NewService(e.store, machine, live, e.logger)
	if cfg.JWTSecret != "" {
		e.tokens = identity.NewProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL, e.store)
	}
	return nil
}

func (e *cliEnv) close() {
	if e.rdb != nil {
		e.rdb.Close()
	}
	if e.store != nil {
		if sqlDB, err := e.store.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// actingAs resolves --as against the role table. The CLI never takes the
// role from the command line.
func (e *cliEnv) actingAs(ctx context.Context, cmd *cobra.Command) (identity.Identity, error) {
	userID, _ := cmd.Flags().GetString("as")
	if userID == "" {
		return identity.Identity{}, fmt.Errorf("no acting user\nHint: pass --as <user-id> or set ADMIN_ID")
	}
	role, err := e.store.GetUserRole(ctx, userID)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("acting user %s: %w", userID, err)
	}
	return identity.Identity{UserID: userID, Role: role}, nil
}
