package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/dfeed"
)

type deriveOutput struct {
	Name           string `json:"name"`
	DerivationPath string `json:"derivation_path"`
	Address        string `json:"address"`
	Bump           uint8  `json:"bump"`
}

func newDeriveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <name>",
		Short: "Derive the feed account address of a feed name",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := a.feedProgram()
			if err != nil {
				return err
			}
			path := dfeed.DerivationPath(args[0])
			address, bump, err := p.FindFeedAddress(path)
			if err != nil {
				return err
			}
			return printJSON(a.out, deriveOutput{
				Name:           args[0],
				DerivationPath: hex.EncodeToString(path[:]),
				Address:        address.String(),
				Bump:           bump,
			})
		},
	}
}
