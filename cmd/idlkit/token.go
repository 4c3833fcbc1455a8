package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/ed25519ix"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/tokenprog"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Build SPL token instructions and decode token accounts",
	}
	cmd.AddCommand(
		newTokenATACmd(a),
		newTokenTransferCmd(a),
		newTokenInspectCmd(a),
	)
	return cmd
}

type ataOutput struct {
	Wallet      string              `json:"wallet"`
	Mint        string              `json:"mint"`
	Address     string              `json:"address"`
	Bump        uint8               `json:"bump"`
	Instruction *solana.Instruction `json:"instruction,omitempty"`
}

func newTokenATACmd(a *app) *cobra.Command {
	var wallet, mint, payer string

	cmd := &cobra.Command{
		Use:   "ata",
		Short: "Derive an associated token address, optionally with its create instruction",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			keys, err := parseKeys(map[string]string{"wallet": wallet, "mint": mint})
			if err != nil {
				return err
			}
			address, bump, err := tokenprog.FindAssociatedTokenAddress(keys["wallet"], keys["mint"])
			if err != nil {
				return err
			}
			out := ataOutput{
				Wallet:  wallet,
				Mint:    mint,
				Address: address.String(),
				Bump:    bump,
			}
			if payer != "" {
				pk, err := solana.ParsePublicKey(payer)
				if err != nil {
					return fmt.Errorf("--payer: %w", err)
				}
				if out.Instruction, _, err = tokenprog.CreateAssociatedTokenAccount(pk, keys["wallet"], keys["mint"]); err != nil {
					return err
				}
			}
			return printJSON(a.out, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&wallet, "wallet", "", "wallet address")
	f.StringVar(&mint, "mint", "", "token mint address")
	f.StringVar(&payer, "payer", "", "fee payer; when set the create instruction is printed")
	return cmd
}

func newTokenTransferCmd(a *app) *cobra.Command {
	var (
		owner, source, dest string
		amount              uint64
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Build a token transfer instruction",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			keys, err := parseKeys(map[string]string{"owner": owner, "source": source, "dest": dest})
			if err != nil {
				return err
			}
			ix, err := tokenprog.Transfer(keys["owner"], keys["source"], keys["dest"], amount)
			if err != nil {
				return err
			}
			return printJSON(a.out, instructionOutput{Instruction: ix})
		},
	}

	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "source account owner")
	f.StringVar(&source, "source", "", "source token account")
	f.StringVar(&dest, "dest", "", "destination token account")
	f.Uint64Var(&amount, "amount", 0, "amount in base units")
	return cmd
}

type tokenAccountOutput struct {
	Type    string `json:"type"`
	Account any    `json:"account"`
}

func newTokenInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <base64>",
		Short: "Decode a mint or token account, a token instruction or an ed25519 verify instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode base64: %w", err)
			}
			out, err := inspectToken(data)
			if err != nil {
				return err
			}
			return printJSON(a.out, out)
		},
	}
}

// inspectToken picks the decoder by size: packed accounts have fixed sizes, anything
// else is tried as a token instruction and then as an ed25519 verify instruction.
func inspectToken(data []byte) (tokenAccountOutput, error) {
	switch len(data) {
	case tokenprog.MintSize:
		m, err := tokenprog.DecodeMint(data)
		if err != nil {
			return tokenAccountOutput{}, err
		}
		return tokenAccountOutput{Type: "mint", Account: m}, nil
	case tokenprog.AccountSize:
		acc, err := tokenprog.DecodeAccount(data)
		if err != nil {
			return tokenAccountOutput{}, err
		}
		return tokenAccountOutput{Type: "account", Account: acc}, nil
	}

	if e, err := tokenprog.DecodeInstruction(data); err == nil {
		return tokenAccountOutput{Type: "instruction", Account: borsh.Native(e)}, nil
	}

	msgs, err := ed25519ix.Parse(data)
	if err != nil {
		return tokenAccountOutput{}, fmt.Errorf("%d bytes are neither a token account nor a known instruction: %w", len(data), err)
	}
	verified := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		verified = append(verified, map[string]any{
			"public_key": m.PublicKey.String(),
			"message":    base64.StdEncoding.EncodeToString(m.Message),
			"valid":      m.Verify(),
		})
	}
	return tokenAccountOutput{Type: "ed25519", Account: verified}, nil
}

func parseKeys(flags map[string]string) (map[string]solana.PublicKey, error) {
	out := make(map[string]solana.PublicKey, len(flags))
	for name, s := range flags {
		pk, err := solana.ParsePublicKey(s)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		out[name] = pk
	}
	return out, nil
}
