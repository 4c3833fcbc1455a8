package main

import (
	"context"
	"fmt"

	"solana-idl-kit/internal/config"
	"solana-idl-kit/internal/storage"
	chstore "solana-idl-kit/internal/storage/clickhouse"
	"solana-idl-kit/internal/storage/memory"
	"solana-idl-kit/internal/storage/migrations"
	pgstore "solana-idl-kit/internal/storage/postgres"
)

// stores holds the trace, event and progress stores of the configured backend.
type stores struct {
	traces   storage.TraceStore
	events   storage.EventStore
	progress storage.ProgressStore
	close    func()
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	if a.cfg.Storage.Type != config.StoragePostgres {
		return &stores{
			traces:   memory.NewTraceStore(),
			events:   memory.NewEventStore(),
			progress: memory.NewProgressStore(),
			close:    func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := migrations.ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	return &stores{
		traces:   pgstore.NewTraceStore(pool),
		events:   pgstore.NewEventStore(pool),
		progress: pgstore.NewProgressStore(pool),
		close:    pool.Close,
	}, nil
}

// openFeedRecordStore uses ClickHouse when a DSN is configured.
func (a *app) openFeedRecordStore(ctx context.Context) (storage.FeedRecordStore, func(), error) {
	if a.cfg.Storage.ClickhouseDSN == "" {
		return memory.NewFeedRecordStore(), func() {}, nil
	}

	conn, err := chstore.OpenDatabase(ctx, a.cfg.Storage.ClickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if _, err := migrations.ApplyClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return chstore.NewFeedRecordStore(conn), func() { conn.Close() }, nil
}
