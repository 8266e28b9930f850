// Package postgres implements the store contracts on PostgreSQL using sqlx
// and squirrel-built queries.
package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cabinet-legal/case-messaging/internal/store"
)

// Repository is the postgres-backed store.
type Repository struct {
	connection *sqlx.DB
}

var _ store.Store = (*Repository)(nil)

// New connects to postgres with the given DSN.
func New(dsn string) (*Repository, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Repository{connection: conn}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() {
	_ = r.connection.Close()
}

// Ping checks connectivity, used by the readiness probe.
func (r *Repository) Ping() error {
	return r.connection.Ping()
}
