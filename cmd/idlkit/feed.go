package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/dfeed"
	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/lookup"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/storage"
)

func newFeedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Read feed accounts and build feed program instructions",
	}
	cmd.AddCommand(
		newFeedShowCmd(a),
		newFeedHistoryCmd(a),
		newFeedCreateCmd(a),
		newFeedSubmitCmd(a),
		newFeedQueryCmd(a),
		newFeedRoundCmd(a),
	)
	return cmd
}

type feedOutput struct {
	Address           string         `json:"address"`
	Version           uint8          `json:"version"`
	State             uint8          `json:"state"`
	Owner             string         `json:"owner"`
	Writer            string         `json:"writer"`
	Description       string         `json:"description"`
	Decimals          uint8          `json:"decimals"`
	FlaggingThreshold uint32         `json:"flagging_threshold"`
	LatestRoundID     uint32         `json:"latest_round_id"`
	Granularity       uint8          `json:"granularity"`
	LiveLength        uint32         `json:"live_length"`
	LiveCursor        uint32         `json:"live_cursor"`
	HistoricalCursor  uint32         `json:"historical_cursor"`
	Live              []detailOutput `json:"live"`
	Historical        []detailOutput `json:"historical"`
	Stored            *int           `json:"stored,omitempty"`
}

type detailOutput struct {
	Slot      uint64 `json:"slot"`
	Timestamp uint32 `json:"timestamp"`
	Answer    string `json:"answer"`
	Price     string `json:"price"`
}

func newFeedOutput(address solana.PublicKey, f *dfeed.Feed) feedOutput {
	details := func(in []dfeed.FeedDetail) []detailOutput {
		out := make([]detailOutput, 0, len(in))
		for _, d := range in {
			out = append(out, detailOutput{
				Slot:      d.Slot,
				Timestamp: d.Timestamp,
				Answer:    d.Price.String(),
				Price:     d.Decimal(f.Decimals).String(),
			})
		}
		return out
	}
	return feedOutput{
		Address:           address.String(),
		Version:           f.Version,
		State:             f.State,
		Owner:             f.Owner.String(),
		Writer:            f.Writer.String(),
		Description:       f.Description,
		Decimals:          f.Decimals,
		FlaggingThreshold: f.FlaggingThreshold,
		LatestRoundID:     f.LatestRoundID,
		Granularity:       f.Granularity,
		LiveLength:        f.LiveLength,
		LiveCursor:        f.LiveCursor,
		HistoricalCursor:  f.HistoricalCursor,
		Live:              details(f.LiveData),
		Historical:        details(f.HistoricalData),
	}
}

func newFeedShowCmd(a *app) *cobra.Command {
	var store bool

	cmd := &cobra.Command{
		Use:   "show <feed>",
		Short: "Decode a feed account and its ring buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.feedProgram()
			if err != nil {
				return err
			}
			address, err := solana.ParsePublicKey(args[0])
			if err != nil {
				return err
			}

			feed, err := p.FetchFeed(cmd.Context(), a.rpcClient(), address)
			if err != nil {
				return err
			}
			out := newFeedOutput(address, feed)

			if store {
				records, closeStore, err := a.openFeedRecordStore(cmd.Context())
				if err != nil {
					return err
				}
				defer closeStore()

				n, err := storeFeedRecords(cmd.Context(), records, address, feed.Records(address))
				if err != nil {
					return err
				}
				a.logger.Info("feed records stored", "feed", address.String(), "new", n)
				out.Stored = &n
			}
			return printJSON(a.out, out)
		},
	}

	cmd.Flags().BoolVar(&store, "store", false, "persist the ring buffer records to the feed record store")
	return cmd
}

// storeFeedRecords inserts the records not stored yet and returns how many.
// The ring buffer is read whole on every call, so most records repeat.
func storeFeedRecords(ctx context.Context, store storage.FeedRecordStore, feed solana.PublicKey, records []*domain.FeedRecord) (int, error) {
	existing, err := store.GetByFeed(ctx, feed.String())
	if err != nil {
		return 0, fmt.Errorf("load stored records: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.RecordID] = true
	}

	var fresh []*domain.FeedRecord
	for _, r := range records {
		if !seen[r.RecordID] {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := store.InsertBulk(ctx, fresh); err != nil {
		return 0, fmt.Errorf("store feed records: %w", err)
	}
	return len(fresh), nil
}

type recordOutput struct {
	Window    string `json:"window"`
	Slot      int64  `json:"slot"`
	Timestamp int64  `json:"timestamp"`
	Answer    string `json:"answer"`
	Price     string `json:"price"`
}

func newRecordOutput(r *domain.FeedRecord) recordOutput {
	return recordOutput{
		Window:    string(r.Window),
		Slot:      r.Slot,
		Timestamp: r.Timestamp,
		Answer:    r.Answer,
		Price:     r.Price.String(),
	}
}

func newFeedHistoryCmd(a *app) *cobra.Command {
	var (
		from, to, at int64
		window       string
	)

	cmd := &cobra.Command{
		Use:   "history <feed>",
		Short: "Print stored feed records in a timestamp range, or the one in force at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.ClickhouseDSN == "" {
				return errors.New("storage.clickhouse_dsn is required for feed history")
			}
			address, err := solana.ParsePublicKey(args[0])
			if err != nil {
				return err
			}

			store, closeStore, err := a.openFeedRecordStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if cmd.Flags().Changed("at") {
				records, err := store.GetByTimeRange(cmd.Context(), address.String(), math.MinInt64, at)
				if err != nil {
					return err
				}
				r, err := lookup.RecordAt(at, domain.FeedWindow(window), records)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("feed %s has no answer at %d", address, at)
				}
				return printJSON(a.out, newRecordOutput(r))
			}

			records, err := store.GetByTimeRange(cmd.Context(), address.String(), from, to)
			if err != nil {
				return err
			}
			out := make([]recordOutput, 0, len(records))
			for _, r := range records {
				if window == "" || string(r.Window) == window {
					out = append(out, newRecordOutput(r))
				}
			}
			return printJSON(a.out, out)
		},
	}

	f := cmd.Flags()
	f.Int64Var(&from, "from", 0, "first unix timestamp, inclusive")
	f.Int64Var(&to, "to", math.MaxInt64, "last unix timestamp, inclusive")
	f.Int64Var(&at, "at", 0, "print only the record in force at this unix timestamp")
	f.StringVar(&window, "window", "", "live or historical, default both")
	return cmd
}

type instructionOutput struct {
	Feed           string              `json:"feed,omitempty"`
	DerivationPath string              `json:"derivation_path,omitempty"`
	Instruction    *solana.Instruction `json:"instruction"`
}

func newFeedCreateCmd(a *app) *cobra.Command {
	var (
		authority string
		name      string
		params    dfeed.CreateFeedParams
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a createFeed instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.feedProgram()
			if err != nil {
				return err
			}
			auth, err := solana.ParsePublicKey(authority)
			if err != nil {
				return fmt.Errorf("--authority: %w", err)
			}

			params.DerivationPath = dfeed.DerivationPath(name)
			ix, feed, err := p.CreateFeed(auth, params)
			if err != nil {
				return err
			}
			return printJSON(a.out, instructionOutput{
				Feed:           feed.String(),
				DerivationPath: hex.EncodeToString(params.DerivationPath[:]),
				Instruction:    ix,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&authority, "authority", "", "feed authority address")
	f.StringVar(&name, "name", "", "feed name the derivation path is hashed from")
	f.Uint32Var(&params.LiveLength, "live-length", 1024, "live ring buffer records")
	f.Uint32Var(&params.HistoryLength, "history-length", 1024, "historical ring buffer records")
	f.StringVar(&params.Description, "description", "", "feed description")
	f.Uint8Var(&params.Decimals, "decimals", 8, "answer decimals")
	f.Uint8Var(&params.Granularity, "granularity", 30, "live records per historical record")
	cmd.MarkFlagRequired("authority")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newFeedSubmitCmd(a *app) *cobra.Command {
	var (
		authority string
		feed      string
		timestamp int64
		answer    string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Build a submitFeed instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.feedProgram()
			if err != nil {
				return err
			}
			auth, err := solana.ParsePublicKey(authority)
			if err != nil {
				return fmt.Errorf("--authority: %w", err)
			}
			address, err := solana.ParsePublicKey(feed)
			if err != nil {
				return fmt.Errorf("--feed: %w", err)
			}
			value, ok := new(big.Int).SetString(answer, 10)
			if !ok {
				return fmt.Errorf("--answer: %q is not an integer", answer)
			}
			if timestamp == 0 {
				timestamp = time.Now().Unix()
			}

			ix, err := p.SubmitFeed(auth, address, timestamp, value)
			if err != nil {
				return err
			}
			return printJSON(a.out, instructionOutput{Feed: address.String(), Instruction: ix})
		},
	}

	f := cmd.Flags()
	f.StringVar(&authority, "authority", "", "feed authority address")
	f.StringVar(&feed, "feed", "", "feed account address")
	f.Int64Var(&timestamp, "timestamp", 0, "unix timestamp of the answer, default now")
	f.StringVar(&answer, "answer", "", "raw integer answer")
	cmd.MarkFlagRequired("authority")
	cmd.MarkFlagRequired("feed")
	cmd.MarkFlagRequired("answer")
	return cmd
}

func newFeedQueryCmd(a *app) *cobra.Command {
	var (
		feed  string
		scope string
		round uint32
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Build a query instruction; the result is the program return data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.feedProgram()
			if err != nil {
				return err
			}
			address, err := solana.ParsePublicKey(feed)
			if err != nil {
				return fmt.Errorf("--feed: %w", err)
			}
			s, err := dfeed.ParseScope(scope, round)
			if err != nil {
				return err
			}

			ix, err := p.Query(address, s)
			if err != nil {
				return err
			}
			return printJSON(a.out, instructionOutput{Feed: address.String(), Instruction: ix})
		},
	}

	f := cmd.Flags()
	f.StringVar(&feed, "feed", "", "feed account address")
	f.StringVar(&scope, "scope", "latest", "version, decimals, description, round, latest or aggregator")
	f.Uint32Var(&round, "round", 0, "round id for the round scope")
	cmd.MarkFlagRequired("feed")
	return cmd
}

type roundOutput struct {
	RoundID   uint32 `json:"round_id"`
	Slot      uint64 `json:"slot"`
	Timestamp uint32 `json:"timestamp"`
	Answer    string `json:"answer"`
	Price     string `json:"price"`
}

func newFeedRoundCmd(a *app) *cobra.Command {
	var decimals uint8

	cmd := &cobra.Command{
		Use:   "round <return-data>",
		Short: "Decode the base64 return data of a round query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := dfeed.RoundFromReturn(args[0])
			if err != nil {
				return err
			}
			return printJSON(a.out, roundOutput{
				RoundID:   r.RoundID,
				Slot:      r.Slot,
				Timestamp: r.Timestamp,
				Answer:    r.Answer.String(),
				Price:     r.Decimal(decimals).String(),
			})
		},
	}

	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "feed decimals used to scale the answer")
	return cmd
}
