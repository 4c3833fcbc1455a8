package migrations

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresExecer is satisfied by a pgx pool, connection or transaction.
type PostgresExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ApplyPostgres creates the trace, event and progress tables. Each file is sent
// whole since PostgreSQL accepts several statements in one simple query.
func ApplyPostgres(ctx context.Context, db PostgresExecer) ([]string, error) {
	return apply(ctx, backend{
		name: "postgres",
		fsys: PostgresFS,
		statements: func(_, sql string) ([]string, error) {
			if strings.TrimSpace(sql) == "" {
				return nil, nil
			}
			return []string{sql}, nil
		},
		exec: func(ctx context.Context, stmt string) error {
			_, err := db.Exec(ctx, stmt)
			return err
		},
	})
}
