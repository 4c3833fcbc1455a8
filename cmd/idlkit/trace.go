package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/events"
	"solana-idl-kit/internal/idl"
	"solana-idl-kit/internal/ingestion"
	"solana-idl-kit/internal/logparser"
)

type traceOutput struct {
	*logparser.TransactionLog
	Slot          uint64         `json:"slot"`
	ProgramErrors []programError `json:"program_errors,omitempty"`
	Events        []eventOutput  `json:"events,omitempty"`
}

type programError struct {
	ProgramID string `json:"program_id"`
	idl.ErrorCode
}

type eventOutput struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

func newTraceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <signature>",
		Short: "Fetch a transaction and print its invocation tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := a.rpcClient().GetTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if tx == nil {
				return fmt.Errorf("transaction %s not found", args[0])
			}

			_, parsed, err := ingestion.NewTrace(a.cfg.Program.ID, tx)
			if err != nil {
				return err
			}
			out := traceOutput{TransactionLog: parsed, Slot: tx.Slot}

			c, err := a.coder()
			if err != nil {
				return err
			}
			out.ProgramErrors = annotateErrors(parsed.Instructions, a.cfg.Program.ID, c)

			if a.cfg.Program.ID != "" && parsed.Success {
				programID, err := a.cfg.ProgramID()
				if err != nil {
					return err
				}
				for decoded, err := range events.NewParser(programID, c).Events(parsed.RawMessages) {
					if err != nil {
						a.logger.Warn("decode event", "error", err)
						continue
					}
					out.Events = append(out.Events, eventOutput{Name: decoded.Name, Data: borsh.Native(decoded.Data)})
				}
			}

			return printJSON(a.out, out)
		},
	}
}

// annotateErrors resolves the custom error codes of failed invocations through
// the IDL error table. With a program id set only its invocations are resolved.
func annotateErrors(nodes []*logparser.InstructionLog, programID string, c *coder.Coder) []programError {
	var out []programError
	for _, node := range nodes {
		out = append(out, annotateErrors(node.Children, programID, c)...)
		if node.Success || (programID != "" && node.ProgramID != programID) {
			continue
		}
		code, ok := node.CustomErrorCode()
		if !ok {
			continue
		}
		if e, ok := c.LookupError(int(code)); ok {
			out = append(out, programError{ProgramID: node.ProgramID, ErrorCode: e})
		}
	}
	return out
}
