package dfeed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/idl"
	"solana-idl-kit/internal/solana"
)

//go:embed feed.json
var feedIDL []byte

const (
	accountTransmissions = "Transmissions"
	feedSeed             = "Feed"
)

// Feed lookup errors.
var (
	ErrFeedNotFound = errors.New("feed account not found")
	ErrWrongOwner   = errors.New("feed account not owned by program")
)

// IDL parses the embedded feed program IDL.
func IDL() (*idl.Idl, error) {
	return idl.Parse(feedIDL)
}

// Program builds and decodes feed program data for one deployment.
type Program struct {
	ID    solana.PublicKey
	coder *coder.Coder
}

// NewProgram compiles the embedded IDL for the program deployed at programID.
func NewProgram(programID solana.PublicKey, opts ...coder.Option) (*Program, error) {
	doc, err := IDL()
	if err != nil {
		return nil, fmt.Errorf("feed idl: %w", err)
	}
	c, err := coder.New(doc, opts...)
	if err != nil {
		return nil, err
	}
	return &Program{ID: programID, coder: c}, nil
}

// Coder exposes the compiled feed IDL, e.g. for event decoding.
func (p *Program) Coder() *coder.Coder { return p.coder }

// FeedSeedPrefix is the first seed of every feed address.
func FeedSeedPrefix() []byte {
	return idhash.SeedPrefix(feedSeed)
}

// DerivationPath is the second feed address seed, derived from the feed name.
func DerivationPath(name string) [8]byte {
	return [8]byte(idhash.SeedPrefix(name))
}

// FindFeedAddress derives the feed account address for a derivation path.
func FindFeedAddress(path [8]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{FeedSeedPrefix(), path[:]}, programID)
}

// FindFeedAddress derives the address of a feed of this program.
func (p *Program) FindFeedAddress(path [8]byte) (solana.PublicKey, uint8, error) {
	return FindFeedAddress(path, p.ID)
}

// CreateFeedParams are the arguments of createFeed.
type CreateFeedParams struct {
	DerivationPath [8]byte
	LiveLength     uint32
	HistoryLength  uint32
	Description    string
	Decimals       uint8
	Granularity    uint8
}

// CreateFeed builds the createFeed instruction and returns it together with the
// address of the feed it creates.
func (p *Program) CreateFeed(authority solana.PublicKey, params CreateFeedParams) (*solana.Instruction, solana.PublicKey, error) {
	feed, _, err := p.FindFeedAddress(params.DerivationPath)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive feed address: %w", err)
	}

	path := make(borsh.Array, len(params.DerivationPath))
	for i, b := range params.DerivationPath {
		path[i] = borsh.U8(b)
	}
	args := borsh.Struct{
		{Name: "derivationPath", Value: path},
		{Name: "liveLength", Value: borsh.U32(params.LiveLength)},
		{Name: "historyLength", Value: borsh.U32(params.HistoryLength)},
		{Name: "description", Value: borsh.String(params.Description)},
		{Name: "decimals", Value: borsh.U8(params.Decimals)},
		{Name: "granularity", Value: borsh.U8(params.Granularity)},
	}

	ix, err := p.build("createFeed", args, map[string]solana.PublicKey{
		"authority":     authority,
		"feed":          feed,
		"systemProgram": solana.SystemProgramID,
	})
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return ix, feed, nil
}

// SubmitFeed builds the submitFeed instruction writing answer at timestamp.
func (p *Program) SubmitFeed(authority, feed solana.PublicKey, timestamp int64, answer *big.Int) (*solana.Instruction, error) {
	a, err := borsh.I128FromBig(answer)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	args := borsh.Struct{
		{Name: "timestamp", Value: borsh.I64(timestamp)},
		{Name: "answer", Value: a},
	}
	return p.build("submitFeed", args, map[string]solana.PublicKey{
		"authority": authority,
		"feed":      feed,
	})
}

// Query builds the query instruction. The result is published as the program's
// return data.
func (p *Program) Query(feed solana.PublicKey, scope Scope) (*solana.Instruction, error) {
	args := borsh.Struct{{Name: "scope", Value: scope.value()}}
	return p.build("query", args, map[string]solana.PublicKey{"feed": feed})
}

func (p *Program) build(name string, args borsh.Value, accounts map[string]solana.PublicKey) (*solana.Instruction, error) {
	build, ok := p.coder.Instruction(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", coder.ErrUnknownInstruction, name)
	}
	return build(args, coder.InstructionContext{Accounts: accounts}, p.ID)
}

// AccountFetcher loads raw account data.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solana.AccountInfo, error)
}

// FetchFeed loads and decodes a feed account.
func (p *Program) FetchFeed(ctx context.Context, rpc AccountFetcher, address solana.PublicKey) (*Feed, error) {
	info, err := rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get feed account %s: %w", address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, address)
	}
	if info.Owner != p.ID {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrWrongOwner, address, info.Owner)
	}
	feed, err := p.DecodeFeed(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", address, err)
	}
	return feed, nil
}
