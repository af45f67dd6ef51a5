// Package storage is the authoritative pack store. Every mutation that has a
// platform side runs as a two-phase commit: the remote call happens first, so
// a platform failure leaves the database untouched; a local failure after a
// successful remote call is surfaced as inconsistent state and logged.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/packbot/core/logger"
	"github.com/m3rciful/packbot/internal/domain"
	"github.com/m3rciful/packbot/internal/platform"
	"github.com/m3rciful/packbot/internal/policy"
)

// Store owns the database, the platform adapter, and the per-pack locks.
type Store struct {
	db     *sqlx.DB
	api    platform.API
	limits policy.Limits
	locks  *keyedMutex

	// defaultFreeUses is the free pack allocation granted on first contact.
	defaultFreeUses int
}

// NewStore wires the store over an open database and a platform adapter.
func NewStore(db *sqlx.DB, api platform.API, limits policy.Limits, defaultFreeUses int) *Store {
	return &Store{
		db:              db,
		api:             api,
		limits:          limits,
		locks:           newKeyedMutex(),
		defaultFreeUses: defaultFreeUses,
	}
}

// Limits exposes the configured limit policy for pre-flight checks in flows.
func (s *Store) Limits() policy.Limits { return s.limits }

// API exposes the platform adapter for read-only lookups in flows.
func (s *Store) API() platform.API { return s.api }

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// logInconsistent records a local failure that happened after the platform
// side effect already succeeded. The operator resolves these by hand.
func logInconsistent(ctx context.Context, op, slug string, err error) error {
	logger.SVCPacks.LogAttrs(ctx, slog.LevelError, "store.inconsistent",
		slog.String("event", "store.inconsistent"),
		slog.String("op", op),
		slog.String("slug", slug),
		slog.String("err", err.Error()),
		slog.String("err_code", domain.CodeOf(domain.ErrInconsistentState)),
	)
	return domain.Wrap(domain.ErrInconsistentState, err)
}

func notFoundOr(err error, wrap string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", wrap, err)
}
