// Package tokenprog builds SPL Token program instructions, derives associated
// token addresses and decodes mint and token accounts.
package tokenprog

import (
	"errors"
	"fmt"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/solana"
)

// Program addresses.
var (
	ProgramID                = solana.MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = solana.MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	RentSysvarID             = solana.MustPublicKey("SysvarRent111111111111111111111111111111111")
)

// ErrUnknownInstruction is returned by DecodeInstruction for data that is not a
// token instruction.
var ErrUnknownInstruction = errors.New("unknown token instruction")

// AuthorityType selects the authority SetAuthority changes.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
)

var (
	u8     = borsh.Scalar(borsh.KindU8)
	u64    = borsh.Scalar(borsh.KindU64)
	pubkey = borsh.Scalar(borsh.KindPublicKey)

	amountArgs = borsh.NewStruct(borsh.FieldLayout{Name: "amount", Layout: u64})

	// instructionLayout follows the program's tag order. Variants without builders
	// are kept so tags line up.
	instructionLayout = borsh.NewEnum(
		borsh.VariantLayout{Name: "InitializeMint", Payload: borsh.NewStruct(
			borsh.FieldLayout{Name: "decimals", Layout: u8},
			borsh.FieldLayout{Name: "mintAuthority", Layout: pubkey},
			borsh.FieldLayout{Name: "freezeAuthority", Layout: borsh.NewOption(pubkey)},
		)},
		borsh.VariantLayout{Name: "InitializeAccount"},
		borsh.VariantLayout{Name: "InitializeMultisig", Payload: borsh.NewStruct(
			borsh.FieldLayout{Name: "m", Layout: u8},
		)},
		borsh.VariantLayout{Name: "Transfer", Payload: amountArgs},
		borsh.VariantLayout{Name: "Approve", Payload: amountArgs},
		borsh.VariantLayout{Name: "Revoke"},
		borsh.VariantLayout{Name: "SetAuthority", Payload: borsh.NewStruct(
			borsh.FieldLayout{Name: "authorityType", Layout: u8},
			borsh.FieldLayout{Name: "newAuthority", Layout: borsh.NewOption(pubkey)},
		)},
		borsh.VariantLayout{Name: "MintTo", Payload: amountArgs},
		borsh.VariantLayout{Name: "Burn", Payload: amountArgs},
		borsh.VariantLayout{Name: "CloseAccount"},
		borsh.VariantLayout{Name: "FreezeAccount"},
		borsh.VariantLayout{Name: "ThawAccount"},
	)
)

// maxInstructionSize covers the largest variant, InitializeMint with a freeze authority.
const maxInstructionSize = 1 + 1 + 32 + 1 + 32

func writable(pk solana.PublicKey) solana.AccountMeta {
	return solana.AccountMeta{PublicKey: pk, IsWritable: true}
}

func readonly(pk solana.PublicKey) solana.AccountMeta {
	return solana.AccountMeta{PublicKey: pk}
}

func signer(pk solana.PublicKey) solana.AccountMeta {
	return solana.AccountMeta{PublicKey: pk, IsSigner: true}
}

func optionalKey(pk *solana.PublicKey) borsh.Option {
	if pk == nil {
		return borsh.None
	}
	return borsh.Some(borsh.PublicKey(*pk))
}

func amount(n uint64) borsh.Struct {
	return borsh.Struct{{Name: "amount", Value: borsh.U64(n)}}
}

func build(variant string, fields borsh.Value, accounts ...solana.AccountMeta) (*solana.Instruction, error) {
	data, err := borsh.Encode(instructionLayout, borsh.Enum{Variant: variant, Fields: fields}, maxInstructionSize)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", variant, err)
	}
	return &solana.Instruction{ProgramID: ProgramID, Accounts: accounts, Data: data}, nil
}

// InitializeMint initializes a new mint account. freezeAuthority may be nil.
func InitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) (*solana.Instruction, error) {
	return build("InitializeMint", borsh.Struct{
		{Name: "decimals", Value: borsh.U8(decimals)},
		{Name: "mintAuthority", Value: borsh.PublicKey(mintAuthority)},
		{Name: "freezeAuthority", Value: optionalKey(freezeAuthority)},
	}, writable(mint), readonly(RentSysvarID))
}

// InitializeAccount initializes a token account of mint owned by owner.
func InitializeAccount(account, mint, owner solana.PublicKey) (*solana.Instruction, error) {
	return build("InitializeAccount", nil,
		writable(account), readonly(mint), readonly(owner), readonly(RentSysvarID))
}

// Transfer moves amount base units between two token accounts of the same mint.
func Transfer(owner, source, destination solana.PublicKey, n uint64) (*solana.Instruction, error) {
	return build("Transfer", amount(n), writable(source), writable(destination), signer(owner))
}

// Approve lets delegate transfer up to amount base units out of account.
func Approve(owner, account, delegate solana.PublicKey, n uint64) (*solana.Instruction, error) {
	return build("Approve", amount(n), writable(account), readonly(delegate), signer(owner))
}

// SetAuthority changes or, with a nil newAuthority, removes an authority of a
// mint or token account.
func SetAuthority(current, target solana.PublicKey, kind AuthorityType, newAuthority *solana.PublicKey) (*solana.Instruction, error) {
	return build("SetAuthority", borsh.Struct{
		{Name: "authorityType", Value: borsh.U8(kind)},
		{Name: "newAuthority", Value: optionalKey(newAuthority)},
	}, writable(target), signer(current))
}

// MintTo mints amount base units into destination.
func MintTo(authority, mint, destination solana.PublicKey, n uint64) (*solana.Instruction, error) {
	return build("MintTo", amount(n), writable(mint), writable(destination), signer(authority))
}

// CloseAccount closes an empty token account and sends its lamports to the owner.
func CloseAccount(owner, account solana.PublicKey) (*solana.Instruction, error) {
	return build("CloseAccount", nil, writable(account), writable(owner), signer(owner))
}

// FreezeAccount freezes a token account using the mint's freeze authority.
func FreezeAccount(account, mint, authority solana.PublicKey) (*solana.Instruction, error) {
	return build("FreezeAccount", nil, writable(account), readonly(mint), signer(authority))
}

// ThawAccount thaws a frozen token account.
func ThawAccount(account, mint, authority solana.PublicKey) (*solana.Instruction, error) {
	return build("ThawAccount", nil, writable(account), readonly(mint), signer(authority))
}

// FindAssociatedTokenAddress derives the canonical token account of wallet for mint.
func FindAssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{wallet[:], ProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
}

// CreateAssociatedTokenAccount builds the instruction creating wallet's associated
// token account for mint, paid for by payer. The derived address is returned too.
func CreateAssociatedTokenAccount(payer, wallet, mint solana.PublicKey) (*solana.Instruction, solana.PublicKey, error) {
	ata, _, err := FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	ix := &solana.Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			writable(ata),
			readonly(wallet),
			readonly(mint),
			readonly(solana.SystemProgramID),
			readonly(ProgramID),
			readonly(RentSysvarID),
		},
		Data: []byte{},
	}
	return ix, ata, nil
}

// DecodeInstruction decodes token instruction data into its variant and fields.
func DecodeInstruction(data []byte) (borsh.Enum, error) {
	v, n, err := borsh.DecodePrefix(instructionLayout, data)
	if err != nil {
		return borsh.Enum{}, fmt.Errorf("%w: %w", ErrUnknownInstruction, err)
	}
	if n != len(data) {
		return borsh.Enum{}, fmt.Errorf("%w: %d trailing bytes", ErrUnknownInstruction, len(data)-n)
	}
	return v.(borsh.Enum), nil
}
