package idl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIDL = `{
  "version": "0.1.0",
  "name": "sample",
  "instructions": [
    {
      "name": "initialize",
      "accounts": [
        {"name": "authority", "isMut": true, "isSigner": true},
        {"name": "pool", "accounts": [
          {"name": "vault", "isMut": true, "isSigner": false}
        ]}
      ],
      "args": [
        {"name": "amount", "type": "u64"},
        {"name": "owner", "type": "pubkey"},
        {"name": "memo", "type": {"option": "string"}},
        {"name": "limits", "type": {"array": ["u16", 4]}},
        {"name": "items", "type": {"vec": {"defined": "Item"}}},
        {"name": "legacy", "type": {"coption": {"defined": {"name": "Item"}}}}
      ]
    }
  ],
  "types": [
    {"name": "Item", "type": {"kind": "struct", "fields": [{"name": "id", "type": "u32"}]}},
    {"name": "Shape", "type": {"kind": "enum", "variants": [
      {"name": "Empty"},
      {"name": "Circle", "fields": [{"name": "radius", "type": "u16"}]},
      {"name": "Pair", "fields": ["u8", {"vec": "u8"}]}
    ]}}
  ],
  "events": [
    {"name": "Moved", "fields": [{"name": "to", "type": "publicKey", "index": true}]}
  ],
  "errors": [
    {"code": 6000, "name": "Stale", "msg": "Feed is stale"}
  ]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleIDL))
	require.NoError(t, err)

	assert.Equal(t, "sample", doc.Name)
	require.Len(t, doc.Instructions, 1)

	ix := doc.Instructions[0]
	require.Len(t, ix.Accounts, 2)
	assert.False(t, ix.Accounts[0].IsGroup())
	assert.True(t, ix.Accounts[0].IsMut)
	assert.True(t, ix.Accounts[1].IsGroup())
	assert.Equal(t, "vault", ix.Accounts[1].Accounts[0].Name)

	args := ix.Args
	require.Len(t, args, 6)
	assert.Equal(t, Prim("u64"), args[0].Type)
	assert.Equal(t, Prim("pubkey"), args[1].Type)
	assert.Equal(t, OptionOf(Prim("string")), args[2].Type)
	assert.Equal(t, ArrayOf(Prim("u16"), 4), args[3].Type)
	assert.Equal(t, VecOf(DefinedType("Item")), args[4].Type)
	assert.Equal(t, COptionOf(DefinedType("Item")), args[5].Type)

	require.Len(t, doc.Types, 2)
	shape := doc.Types[1].Type
	assert.Equal(t, TypeDefEnum, shape.Kind)
	require.Len(t, shape.Variants, 3)
	assert.Nil(t, shape.Variants[0].Fields)
	assert.True(t, shape.Variants[1].Fields.IsNamed())
	assert.False(t, shape.Variants[2].Fields.IsNamed())
	assert.Equal(t, []Type{Prim("u8"), VecOf(Prim("u8"))}, shape.Variants[2].Fields.Tuple)

	assert.True(t, doc.Events[0].Fields[0].Index)
	assert.Equal(t, 6000, doc.Errors[0].Code)
}

func TestType_UnmarshalErrors(t *testing.T) {
	bad := []string{
		`""`,
		`{}`,
		`{"array": ["u8"]}`,
		`{"array": ["u8", -1]}`,
		`{"defined": 5}`,
		`42`,
	}
	for _, in := range bad {
		var ty Type
		assert.Error(t, json.Unmarshal([]byte(in), &ty), in)
	}
}

func TestType_MarshalRoundTrip(t *testing.T) {
	types := []Type{
		Prim("bool"),
		DefinedType("Item"),
		OptionOf(VecOf(Prim("u8"))),
		COptionOf(Prim("publicKey")),
		ArrayOf(ArrayOf(Prim("u8"), 2), 3),
	}
	for _, ty := range types {
		data, err := json.Marshal(ty)
		require.NoError(t, err)

		var got Type
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, ty, got, string(data))
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "Option<Vec<[u8; 32]>>", OptionOf(VecOf(ArrayOf(Prim("u8"), 32))).String())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleIDL), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", doc.Version)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCaseConversion(t *testing.T) {
	tests := []struct {
		in    string
		snake string
		camel string
	}{
		{"createFeed", "create_feed", "createFeed"},
		{"create_feed", "create_feed", "createFeed"},
		{"CreateFeed", "create_feed", "createFeed"},
		{"submit-feed", "submit_feed", "submitFeed"},
		{"HTTPServer", "http_server", "httpServer"},
		{"setV2Config", "set_v2_config", "setV2Config"},
		{"query", "query", "query"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.snake, SnakeCase(tt.in))
			assert.Equal(t, tt.camel, CamelCase(tt.in))
		})
	}
}
