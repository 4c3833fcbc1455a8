package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/events"
	"solana-idl-kit/internal/solana"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		names   []string
		natsURL string
		store   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the program's events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("nats") {
				a.cfg.NATS.URL = natsURL
			}

			programID, err := a.cfg.ProgramID()
			if err != nil {
				return err
			}
			c, err := a.coder()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				for _, ev := range c.Idl().Events {
					names = append(names, ev.Name)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("the idl of %s declares no events", programID)
			}

			a.serveMetrics(ctx)

			opts := []events.ListenerOption{
				events.WithLogger(a.logger),
				events.WithMetrics(a.metrics),
			}
			if a.cfg.NATS.URL != "" {
				nc, err := events.ConnectNATS(a.cfg.NATS.URL, a.logger)
				if err != nil {
					return err
				}
				defer nc.Drain()
				opts = append(opts, events.WithSink(events.NewNATSSink(nc, a.cfg.NATS.SubjectPrefix)))
			}
			if store {
				s, err := a.openStores(ctx)
				if err != nil {
					return err
				}
				defer s.close()
				opts = append(opts, events.WithSink(events.NewStoreSink(s.events)))
			}

			wsConfig := solana.DefaultWSConfig()
			wsConfig.Logger = a.logger
			ws, err := solana.NewWSClient(ctx, a.cfg.RPC.WSEndpoint, &wsConfig)
			if err != nil {
				return fmt.Errorf("connect websocket: %w", err)
			}
			defer ws.Close()

			listener := events.NewListener(ws, events.NewParser(programID, c), opts...)
			for _, name := range names {
				_, err := listener.AddEventListener(ctx, name, func(data borsh.Value, slot uint64, signature string) {
					a.logger.Info("event", "name", name, "slot", slot, "signature", signature, "data", borsh.Native(data))
				})
				if err != nil {
					return err
				}
			}
			a.logger.Info("watching", "program", programID.String(), "events", names)

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := listener.Close(shutdownCtx); err != nil {
				a.logger.Warn("close listener", "error", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&names, "event", nil, "event names to watch, default all events of the idl")
	f.StringVar(&natsURL, "nats", "", "NATS server URL to publish events to (overrides nats.url)")
	f.BoolVar(&store, "store", false, "persist decoded events to the event store")
	return cmd
}
