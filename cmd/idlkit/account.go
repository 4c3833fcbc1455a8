package main

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/solana"
)

type accountOutput struct {
	Address  string `json:"address,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Lamports uint64 `json:"lamports,omitempty"`
	Type     string `json:"type"`
	Data     any    `json:"data"`
}

func newAccountCmd(a *app) *cobra.Command {
	var raw string

	cmd := &cobra.Command{
		Use:   "account [address]",
		Short: "Decode an account with the IDL, matching its discriminator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.coder()
			if err != nil {
				return err
			}

			var out accountOutput
			var data []byte
			switch {
			case raw != "":
				data, err = base64.StdEncoding.DecodeString(raw)
				if err != nil {
					return fmt.Errorf("--data: %w", err)
				}
			case len(args) == 1:
				address, err := solana.ParsePublicKey(args[0])
				if err != nil {
					return err
				}
				info, err := a.rpcClient().GetAccountInfo(cmd.Context(), address)
				if err != nil {
					return err
				}
				if info == nil {
					return fmt.Errorf("account %s not found", address)
				}
				out.Address = address.String()
				out.Owner = info.Owner.String()
				out.Lamports = info.Lamports
				data = info.Data
			default:
				return errors.New("an address or --data is required")
			}

			decoded, err := c.DecodeAnyAccount(data)
			if err != nil {
				return err
			}
			if decoded == nil {
				return errors.New("no account of the IDL matches the data discriminator")
			}
			out.Type = decoded.Name
			out.Data = borsh.Native(decoded.Data)
			return printJSON(a.out, out)
		},
	}

	cmd.Flags().StringVar(&raw, "data", "", "base64 account data to decode instead of fetching an address")
	return cmd
}
