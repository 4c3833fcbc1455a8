package dfeed

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/coder"
	"solana-idl-kit/internal/domain"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/solana"
	"solana-idl-kit/internal/solana/stub"
)

var testProgramID = solana.MustPublicKey("HEvSKofvBgfaexv23kMabbYqxasxU3mQ4ibBMEmJWHny")

func newTestProgram(t *testing.T) *Program {
	t.Helper()
	p, err := NewProgram(testProgramID)
	require.NoError(t, err)
	return p
}

type feedHeader struct {
	liveLength       uint32
	historicalCursor uint32
	decimals         uint8
	description      string
}

// buildFeedAccount writes a header and n records. Record i has slot 1000+i and
// price i*100, except the indexes in zero which are left unwritten.
func buildFeedAccount(t *testing.T, p *Program, h feedHeader, n int, zero map[int]bool) []byte {
	t.Helper()

	desc := make(borsh.Array, 32)
	for i := range desc {
		var b byte
		if i < len(h.description) {
			b = h.description[i]
		}
		desc[i] = borsh.U8(b)
	}
	header, err := p.Coder().EncodeAccount(accountTransmissions, borsh.Struct{
		{Name: "version", Value: borsh.U8(2)},
		{Name: "state", Value: borsh.U8(0)},
		{Name: "owner", Value: borsh.PublicKey{1}},
		{Name: "proposedOwner", Value: borsh.PublicKey{}},
		{Name: "writer", Value: borsh.PublicKey{3}},
		{Name: "description", Value: desc},
		{Name: "decimals", Value: borsh.U8(h.decimals)},
		{Name: "flaggingThreshold", Value: borsh.U32(100)},
		{Name: "latestRoundId", Value: borsh.U32(uint32(n))},
		{Name: "granularity", Value: borsh.U8(1)},
		{Name: "liveLength", Value: borsh.U32(h.liveLength)},
		{Name: "liveCursor", Value: borsh.U32(h.liveLength)},
		{Name: "historicalCursor", Value: borsh.U32(h.historicalCursor)},
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(header), HeaderSize)

	data := make([]byte, HeaderSize+n*DetailSize)
	copy(data, header)
	for i := 0; i < n; i++ {
		if zero[i] {
			continue
		}
		rec := data[HeaderSize+i*DetailSize:]
		binary.LittleEndian.PutUint64(rec[0:], uint64(1000+i))
		binary.LittleEndian.PutUint32(rec[8:], uint32(1_700_000_000+i))
		binary.LittleEndian.PutUint64(rec[16:], uint64(i*100))
	}
	return data
}

func TestDecodeFeed_Windows(t *testing.T) {
	p := newTestProgram(t)
	zero := map[int]bool{10: true, 11: true, 12: true, 13: true, 14: true}
	data := buildFeedAccount(t, p, feedHeader{liveLength: 25, historicalCursor: 30, decimals: 8, description: "SOL / USD"}, 30, zero)

	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	assert.Len(t, feed.LiveData, 20)
	assert.Len(t, feed.HistoricalData, 5)
	assert.Equal(t, uint8(2), feed.Version)
	assert.Equal(t, "SOL / USD", feed.Description)
	assert.Equal(t, uint32(25), feed.LiveLength)
	assert.Equal(t, uint32(30), feed.HistoricalCursor)
	assert.Equal(t, solana.PublicKey{1}, feed.Owner)
	assert.Equal(t, solana.PublicKey{3}, feed.Writer)

	// Order follows the buffer; the unwritten indexes 10-14 are skipped.
	assert.Equal(t, uint64(1009), feed.LiveData[9].Slot)
	assert.Equal(t, uint64(1015), feed.LiveData[10].Slot)
	assert.Equal(t, uint64(1025), feed.HistoricalData[0].Slot)
	assert.Equal(t, "2900", feed.HistoricalData[4].Price.String())
}

func TestDecodeFeed_CursorBound(t *testing.T) {
	p := newTestProgram(t)
	data := buildFeedAccount(t, p, feedHeader{liveLength: 5, historicalCursor: 8}, 20, nil)

	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	assert.Len(t, feed.LiveData, 5)
	assert.Len(t, feed.HistoricalData, 3)
}

func TestDecodeFeed_BufferBound(t *testing.T) {
	p := newTestProgram(t)
	data := buildFeedAccount(t, p, feedHeader{liveLength: 25, historicalCursor: 30}, 12, nil)
	// A trailing partial record is not read.
	data = append(data, make([]byte, DetailSize-1)...)
	data[len(data)-DetailSize+1] = 9

	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	assert.Len(t, feed.LiveData, 12)
	assert.Empty(t, feed.HistoricalData)
}

func TestDecodeFeed_ExactRecordAtEnd(t *testing.T) {
	p := newTestProgram(t)
	data := buildFeedAccount(t, p, feedHeader{liveLength: 1, historicalCursor: 2}, 2, nil)

	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	assert.Len(t, feed.LiveData, 1)
	assert.Len(t, feed.HistoricalData, 1)
}

func TestDecodeFeed_Empty(t *testing.T) {
	p := newTestProgram(t)
	data := buildFeedAccount(t, p, feedHeader{liveLength: 25, historicalCursor: 0}, 4, nil)

	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	assert.NotNil(t, feed.LiveData)
	assert.Empty(t, feed.LiveData)
	assert.Empty(t, feed.HistoricalData)
}

func TestDecodeFeed_Errors(t *testing.T) {
	p := newTestProgram(t)

	_, err := p.DecodeFeed(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, borsh.ErrTruncated)

	_, err = p.DecodeFeed(make([]byte, HeaderSize))
	assert.ErrorIs(t, err, coder.ErrDiscriminatorMismatch)
}

func TestFeedDetail_Decimal(t *testing.T) {
	d := FeedDetail{Price: big.NewInt(-123456789)}
	assert.Equal(t, "-1.23456789", d.Decimal(8).String())

	r := Round{Answer: big.NewInt(2500)}
	assert.Equal(t, "25", r.Decimal(2).String())
}

func TestFetchFeed(t *testing.T) {
	p := newTestProgram(t)
	rpc := stub.NewRPCClient()
	address := solana.PublicKey{42}
	data := buildFeedAccount(t, p, feedHeader{liveLength: 2, historicalCursor: 3}, 3, nil)
	rpc.AddAccount(address, testProgramID, data)
	rpc.AddAccount(solana.PublicKey{43}, solana.SystemProgramID, data)

	feed, err := p.FetchFeed(context.Background(), rpc, address)
	require.NoError(t, err)
	assert.Len(t, feed.LiveData, 2)
	assert.Len(t, feed.HistoricalData, 1)

	_, err = p.FetchFeed(context.Background(), rpc, solana.PublicKey{99})
	assert.ErrorIs(t, err, ErrFeedNotFound)

	_, err = p.FetchFeed(context.Background(), rpc, solana.PublicKey{43})
	assert.ErrorIs(t, err, ErrWrongOwner)

	rpc.Err = errors.New("connection refused")
	_, err = p.FetchFeed(context.Background(), rpc, address)
	assert.ErrorContains(t, err, "connection refused")
}

func TestSeeds(t *testing.T) {
	prefix := FeedSeedPrefix()
	assert.Len(t, prefix, 8)
	assert.Equal(t, idhash.SeedPrefix("Feed"), prefix)
	assert.Equal(t, prefix, FeedSeedPrefix())

	a := DerivationPath("SOL/USD")
	assert.Equal(t, a, DerivationPath("SOL/USD"))
	assert.NotEqual(t, a, DerivationPath("BTC/USD"))
}

func TestFindFeedAddress(t *testing.T) {
	path := DerivationPath("SOL/USD")

	addr, bump, err := FindFeedAddress(path, testProgramID)
	require.NoError(t, err)

	again, err := solana.CreateProgramAddress([][]byte{FeedSeedPrefix(), path[:], {bump}}, testProgramID)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestCreateFeed(t *testing.T) {
	p := newTestProgram(t)
	authority := solana.PublicKey{7}
	path := DerivationPath("SOL/USD")

	ix, feed, err := p.CreateFeed(authority, CreateFeedParams{
		DerivationPath: path,
		LiveLength:     25,
		HistoryLength:  75,
		Description:    "SOL/USD Price Feed",
		Decimals:       9,
		Granularity:    1,
	})
	require.NoError(t, err)

	want, _, err := p.FindFeedAddress(path)
	require.NoError(t, err)
	assert.Equal(t, want, feed)
	assert.Equal(t, testProgramID, ix.ProgramID)
	assert.Equal(t, []solana.AccountMeta{
		{PublicKey: authority, IsSigner: true, IsWritable: true},
		{PublicKey: feed, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
	}, ix.Accounts)

	sighash := idhash.Sighash("create_feed")
	assert.Equal(t, sighash[:], ix.Data[:8])
	assert.Equal(t, path[:], ix.Data[8:16])
	assert.Equal(t, uint32(25), binary.LittleEndian.Uint32(ix.Data[16:]))
	assert.Equal(t, uint32(75), binary.LittleEndian.Uint32(ix.Data[20:]))

	decoded, err := p.Coder().DecodeInstruction(ix.Data)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, "createFeed", decoded.Name)
	desc, _ := decoded.Args.(borsh.Struct).Get("description")
	assert.Equal(t, borsh.String("SOL/USD Price Feed"), desc)
}

func TestSubmitFeed(t *testing.T) {
	p := newTestProgram(t)
	authority := solana.PublicKey{7}
	feed := solana.PublicKey{8}

	ix, err := p.SubmitFeed(authority, feed, 1_700_000_000, big.NewInt(-1000))
	require.NoError(t, err)

	assert.Equal(t, []solana.AccountMeta{
		{PublicKey: authority, IsSigner: true},
		{PublicKey: feed, IsWritable: true},
	}, ix.Accounts)
	require.Len(t, ix.Data, 8+8+16)
	assert.Equal(t, int64(1_700_000_000), int64(binary.LittleEndian.Uint64(ix.Data[8:])))

	decoded, err := p.Coder().DecodeInstruction(ix.Data)
	require.NoError(t, err)
	answer, _ := decoded.Args.(borsh.Struct).Get("answer")
	assert.Equal(t, "-1000", answer.(borsh.I128).String())

	tooBig := new(big.Int).Lsh(big.NewInt(1), 127)
	_, err = p.SubmitFeed(authority, feed, 0, tooBig)
	assert.ErrorIs(t, err, borsh.ErrMismatch)
}

func TestQuery(t *testing.T) {
	p := newTestProgram(t)
	feed := solana.PublicKey{8}

	ix, err := p.Query(feed, ScopeLatestRoundData)
	require.NoError(t, err)
	sighash := idhash.Sighash("query")
	assert.Equal(t, append(sighash[:], 4), ix.Data)
	assert.Equal(t, []solana.AccountMeta{{PublicKey: feed}}, ix.Accounts)

	ix, err = p.Query(feed, ScopeRoundData(9))
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 9, 0, 0, 0}, ix.Data[8:])

	decoded, err := p.Coder().DecodeInstruction(ix.Data)
	require.NoError(t, err)
	scope, _ := decoded.Args.(borsh.Struct).Get("scope")
	assert.Equal(t, ScopeRoundData(9).value(), scope)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("round", 4)
	require.NoError(t, err)
	assert.Equal(t, ScopeRoundData(4), s)

	s, err = ParseScope("latest", 0)
	require.NoError(t, err)
	assert.Equal(t, ScopeLatestRoundData, s)

	_, err = ParseScope("price", 0)
	assert.Error(t, err)
}

func TestRoundFromReturn(t *testing.T) {
	want := Round{RoundID: 12, Slot: 99, Timestamp: 1_700_000_000, Answer: big.NewInt(-42)}
	data, err := EncodeRound(want)
	require.NoError(t, err)
	assert.Len(t, data, 32)

	got, err := RoundFromReturn(base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, want.RoundID, got.RoundID)
	assert.Equal(t, want.Slot, got.Slot)
	assert.Equal(t, want.Timestamp, got.Timestamp)
	assert.Equal(t, "-42", got.Answer.String())

	_, err = RoundFromReturn("!!")
	assert.Error(t, err)

	_, err = DecodeRound(data[:20])
	assert.ErrorIs(t, err, borsh.ErrTruncated)
}

func TestIDL(t *testing.T) {
	doc, err := IDL()
	require.NoError(t, err)
	assert.Equal(t, "chainlink_dfeed", doc.Name)
	assert.Len(t, doc.Instructions, 3)

	e, ok := newTestProgram(t).Coder().LookupError(6000)
	require.True(t, ok)
	assert.Equal(t, "Unauthorized", e.Name)
}

func TestFeed_Records(t *testing.T) {
	p := newTestProgram(t)
	data := buildFeedAccount(t, p, feedHeader{liveLength: 2, historicalCursor: 3, decimals: 2}, 3, nil)
	feed, err := p.DecodeFeed(data)
	require.NoError(t, err)

	address := solana.PublicKey{42}
	records := feed.Records(address)
	require.Len(t, records, 3)

	assert.Equal(t, domain.FeedWindowLive, records[0].Window)
	assert.Equal(t, domain.FeedWindowLive, records[1].Window)
	assert.Equal(t, domain.FeedWindowHistorical, records[2].Window)
	assert.Equal(t, address.String(), records[2].Feed)
	assert.Equal(t, int64(1002), records[2].Slot)
	assert.Equal(t, "200", records[2].Answer)
	assert.Equal(t, "2", records[2].Price.String())
	assert.Equal(t, idhash.ComputeFeedRecordID(address.String(), "historical", 1002, 1_700_000_002), records[2].RecordID)
	assert.NotEqual(t, records[0].RecordID, records[1].RecordID)
}
