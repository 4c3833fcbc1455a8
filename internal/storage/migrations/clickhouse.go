package migrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsplittable is returned for a ClickHouse migration with a semicolon inside a
// string literal.
var ErrUnsplittable = errors.New("semicolon inside string literal")

// ClickhouseExecer is satisfied by a ClickHouse driver connection.
type ClickhouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ApplyClickhouse creates the feed record table. The driver runs one statement per
// Exec, so files are split on semicolons.
func ApplyClickhouse(ctx context.Context, conn ClickhouseExecer) ([]string, error) {
	return apply(ctx, backend{
		name: "clickhouse",
		fsys: ClickhouseFS,
		statements: func(file, sql string) ([]string, error) {
			if err := validateNoSemicolonInStrings(sql); err != nil {
				return nil, fmt.Errorf("validate migration %s: %w", file, err)
			}
			return splitStatements(sql), nil
		},
		exec: func(ctx context.Context, stmt string) error {
			return conn.Exec(ctx, stmt)
		},
	})
}

// splitStatements drops -- comment lines and splits on semicolons. Migrations
// must keep semicolons out of string literals and block comments.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("%w at byte %d", ErrUnsplittable, i)
			}
		}
	}
	return nil
}
