// Package migrations embeds the SQL schema of both stores and applies it.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// backend describes how one database takes its migrations.
type backend struct {
	name string
	fsys fs.FS
	// statements turns a file into what is sent to exec, one call per element.
	statements func(file, sql string) ([]string, error)
	exec       func(ctx context.Context, stmt string) error
}

// apply runs every .sql file of the backend in lexical order (001_, 002_, ...)
// and returns the files applied. Migrations are idempotent, so a rerun is safe.
func apply(ctx context.Context, b backend) ([]string, error) {
	files, err := migrationFiles(b.fsys, b.name)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(b.fsys, file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		stmts, err := b.statements(file, string(data))
		if err != nil {
			return applied, err
		}
		for _, stmt := range stmts {
			if err := b.exec(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		if len(stmts) > 0 {
			applied = append(applied, file)
		}
	}

	slog.Debug("migrations applied", "backend", b.name, "files", len(applied))
	return applied, nil
}

// migrationFiles lists the .sql files of dir in lexical order.
func migrationFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, dir+"/"+entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
