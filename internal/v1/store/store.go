// Package store persists chat messages and blocked-user records in postgres
// and answers the access queries the session consumes. Operation-level "not
// found" is a nil result; only infrastructure failures are errors, surfaced
// with kind database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/metrics"
	"github.com/streamnest/chatd/internal/v1/status"
)

// Store owns the connection pool. All reads and writes of persistent chat
// state go through its methods.
type Store struct {
	db      *sqlx.DB
	breaker *gobreaker.CircuitBreaker
}

// New wraps an open pool. The breaker trips after consecutive query failures
// so a dead database degrades to fast 507s instead of pool exhaustion.
func New(db *sqlx.DB) *Store {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "postgres",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn(context.Background(), "Store circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Store{db: db, breaker: cb}
}

// Open connects to postgres and configures the pool.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// errNotFound flows a no-row outcome through the breaker without counting it
// as a failure.
var errNotFound = errors.New("store: not found")

// do runs one query through the breaker, records its duration, and maps
// failures to a 507 database status error. fn returns errNotFound (or wraps
// sql.ErrNoRows) for the nil-result case.
func (s *Store) do(ctx context.Context, query string, fn func() (any, error)) (any, error) {
	start := time.Now()
	var notFound bool
	res, err := s.breaker.Execute(func() (any, error) {
		res, err := fn()
		// A no-row outcome is a valid answer, not a breaker failure.
		if err != nil && (errors.Is(err, sql.ErrNoRows) || errors.Is(err, errNotFound)) {
			notFound = true
			return nil, nil
		}
		return res, err
	})
	metrics.StoreQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())

	if err != nil {
		logging.Error(ctx, "Store query failed", zap.String("query", query), zap.Error(err))
		return nil, status.Database(err)
	}
	if notFound {
		return nil, nil
	}
	return res, nil
}
