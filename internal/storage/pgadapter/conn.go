// Package pgadapter implements storage.Adapter against Postgres via
// database/sql + the pgx/v5 stdlib driver, exactly the combination the
// teacher uses in internal/pg/conn.go and internal/pg/schema.go
// (avangerus-kalita). See DESIGN.md for what changed to fit spec §4.3's
// map[string]any raw-row contract instead of the teacher's dsl.Entity type.
package pgadapter

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx

	"github.com/kalita-labs/truss/internal/errs"
	"github.com/kalita-labs/truss/internal/storage"
)

// Adapter is the relational storage.Adapter implementation.
type Adapter struct {
	url string
	db  *sql.DB
}

var _ storage.Adapter = (*Adapter)(nil)

// New builds an Adapter bound to a connection string; Init opens the pool.
func New(url string) *Adapter { return &Adapter{url: url} }

// Init opens the connection pool and pings it, using the teacher's exact
// pool-tuning values (internal/pg/conn.go).
func (a *Adapter) Init(ctx context.Context) error {
	db, err := sql.Open("pgx", a.url)
	if err != nil {
		return errs.Wrap(errs.Storage, err, "opening postgres connection")
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return errs.Wrap(errs.Storage, err, "pinging postgres")
	}
	a.db = db
	return nil
}

func (a *Adapter) Close(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
