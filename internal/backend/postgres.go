package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Register the pgx stdlib driver under the name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/FallSoftCo/axiom-mcp-server/internal/environment"
)

// PostgresRouter holds one bounded connection pool per environment and
// routes query execution to the right one. Each call acquires a scoped
// session from its pool and releases it on every exit path; the pool size
// is the only cross-call contention point.
type PostgresRouter struct {
	pools  map[string]*sql.DB // environment ID → pool
	logger *zap.Logger
}

// NewPostgresRouter opens a pool for every environment with a database
// target. Environments sharing a DSN share a pool.
func NewPostgresRouter(envs []environment.Environment, maxConns int, logger *zap.Logger) (*PostgresRouter, error) {
	r := &PostgresRouter{
		pools:  make(map[string]*sql.DB, len(envs)),
		logger: logger,
	}

	byDSN := make(map[string]*sql.DB)
	for _, env := range envs {
		if env.DatabaseURL == "" {
			continue
		}
		db, ok := byDSN[env.DatabaseURL]
		if !ok {
			var err error
			db, err = sql.Open("pgx", env.DatabaseURL)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("postgres: open pool for %s: %w", env.ID, err)
			}
			db.SetMaxOpenConns(maxConns)
			db.SetMaxIdleConns(maxConns / 2)
			db.SetConnMaxLifetime(5 * time.Minute)
			byDSN[env.DatabaseURL] = db
		}
		r.pools[env.ID] = db
	}

	return r, nil
}

// Close releases every pool.
func (r *PostgresRouter) Close() {
	closed := make(map[*sql.DB]bool)
	for _, db := range r.pools {
		if !closed[db] {
			_ = db.Close()
			closed[db] = true
		}
	}
}

func (r *PostgresRouter) pool(envID string) (*sql.DB, error) {
	db, ok := r.pools[envID]
	if !ok {
		return nil, &Error{Backend: "postgres", Message: fmt.Sprintf("no database configured for environment %q", envID)}
	}
	return db, nil
}

// Query runs a read statement in the given environment and collects the
// rows. The session is acquired per call and always released.
func (r *PostgresRouter) Query(ctx context.Context, envID, sqlText string, params []any) ([]Record, error) {
	db, err := r.pool(envID)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &Error{Backend: "postgres", Message: fmt.Sprintf("acquire session: %v", err)}
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, &Error{Backend: "postgres", Message: err.Error()}
	}
	defer rows.Close()

	records, err := collectRows(rows)
	if err != nil {
		return nil, &Error{Backend: "postgres", Message: err.Error()}
	}

	r.logger.Debug("postgres query executed",
		zap.String("environment", envID),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

// Exec runs a mutating statement and returns the number of affected rows.
func (r *PostgresRouter) Exec(ctx context.Context, envID, sqlText string, params []any) (int64, error) {
	db, err := r.pool(envID)
	if err != nil {
		return 0, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, &Error{Backend: "postgres", Message: fmt.Sprintf("acquire session: %v", err)}
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, sqlText, params...)
	if err != nil {
		return 0, &Error{Backend: "postgres", Message: err.Error()}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &Error{Backend: "postgres", Message: err.Error()}
	}

	r.logger.Info("postgres mutation executed",
		zap.String("environment", envID),
		zap.Int64("rows_affected", affected),
	)
	return affected, nil
}

// collectRows scans every row into a Record keyed by column name. Byte
// slices become strings so results stay JSON-serializable.
func collectRows(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := Record{}
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[col] = v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
