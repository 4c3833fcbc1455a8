package main

import (
	"github.com/spf13/cobra"

	"solana-idl-kit/internal/events"
	"solana-idl-kit/internal/ingestion"
)

type backfillOutput struct {
	Transactions int    `json:"transactions"`
	Failed       int    `json:"failed"`
	Events       int    `json:"events"`
	Duplicates   int    `json:"duplicates"`
	Missing      int    `json:"missing"`
	Errors       int    `json:"errors"`
	LastSlot     uint64 `json:"last_slot"`
	LastSig      string `json:"last_signature,omitempty"`
	Duration     string `json:"duration"`
}

func newBackfillCmd(a *app) *cobra.Command {
	var pageSize, maxTx int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Store the program's transaction history since the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			programID, err := a.cfg.ProgramID()
			if err != nil {
				return err
			}
			c, err := a.coder()
			if err != nil {
				return err
			}
			s, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			b := ingestion.NewBackfiller(ingestion.BackfillOptions{
				RPC:             a.rpcClient(),
				ProgramID:       programID,
				Parser:          events.NewParser(programID, c),
				TraceStore:      s.traces,
				EventStore:      s.events,
				ProgressStore:   s.progress,
				PageSize:        pageSize,
				MaxTransactions: maxTx,
				Logger:          a.logger,
				Metrics:         a.metrics,
			})
			result, err := b.Run(ctx)
			if err != nil {
				return err
			}

			return printJSON(a.out, backfillOutput{
				Transactions: result.TransactionsProcessed,
				Failed:       result.FailedTransactions,
				Events:       result.EventsStored,
				Duplicates:   result.DuplicatesSkipped,
				Missing:      result.Missing,
				Errors:       result.Errors,
				LastSlot:     result.LastSlot,
				LastSig:      result.LastSignature,
				Duration:     result.Duration.String(),
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&pageSize, "page-size", 1000, "signatures per getSignaturesForAddress call")
	f.IntVar(&maxTx, "max", 0, "process at most this many transactions, oldest first; 0 means all")
	return cmd
}
