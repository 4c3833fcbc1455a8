package coder

import (
	"fmt"
	"sort"

	"solana-idl-kit/internal/borsh"
	"solana-idl-kit/internal/idhash"
	"solana-idl-kit/internal/idl"
	"solana-idl-kit/internal/solana"
)

// InstructionDef is a compiled instruction or state method.
type InstructionDef struct {
	// Name is the camelCase lookup key.
	Name string
	// WireName is the snake_case identifier hashed into the sighash.
	WireName  string
	Namespace string
	Sighash   [idhash.DiscriminatorSize]byte
	Args      *borsh.StructLayout
	Accounts  []idl.AccountItem
}

// InstructionContext supplies the accounts of one instruction invocation. Accounts
// nested in a group are keyed by their dotted path, e.g. "pool.vault".
type InstructionContext struct {
	Accounts  map[string]solana.PublicKey
	Remaining []solana.AccountMeta
}

// BuildInstructionFunc builds an instruction from its arguments and accounts.
type BuildInstructionFunc func(args borsh.Value, ctx InstructionContext, programID solana.PublicKey) (*solana.Instruction, error)

// DecodedInstruction is instruction data identified by its sighash.
type DecodedInstruction struct {
	Name string
	Args borsh.Value
}

func (c *Coder) addInstruction(comp *compiler, ix idl.Instruction, namespace string) error {
	key := idl.CamelCase(ix.Name)
	if _, dup := c.instructions[key]; dup {
		return fmt.Errorf("%w: duplicate instruction %q", ErrInvalidSchema, key)
	}

	args, err := comp.fields(ix.Args)
	if err != nil {
		return fmt.Errorf("instruction %s: %w", ix.Name, err)
	}

	wire := idl.SnakeCase(ix.Name)
	def := &InstructionDef{
		Name:      key,
		WireName:  wire,
		Namespace: namespace,
		Sighash:   idhash.Discriminator(namespace, wire),
		Args:      args,
		Accounts:  ix.Accounts,
	}
	if other, clash := c.bySighash[def.Sighash]; clash {
		return fmt.Errorf("%w: sighash of %q collides with %q", ErrInvalidSchema, key, other.Name)
	}

	c.instructions[key] = def
	c.bySighash[def.Sighash] = def
	c.builders[key] = c.builder(def)
	return nil
}

func (c *Coder) builder(def *InstructionDef) BuildInstructionFunc {
	return func(args borsh.Value, ctx InstructionContext, programID solana.PublicKey) (*solana.Instruction, error) {
		data, err := c.encodeInstruction(def, args)
		if err != nil {
			return nil, err
		}
		metas, err := accountMetas(def.Accounts, "", ctx.Accounts, nil)
		if err != nil {
			return nil, fmt.Errorf("instruction %s: %w", def.Name, err)
		}
		metas = append(metas, ctx.Remaining...)
		return &solana.Instruction{
			ProgramID: programID,
			Accounts:  metas,
			Data:      data,
		}, nil
	}
}

// accountMetas flattens account items in declaration order.
func accountMetas(items []idl.AccountItem, prefix string, keys map[string]solana.PublicKey, out []solana.AccountMeta) ([]solana.AccountMeta, error) {
	for _, item := range items {
		path := item.Name
		if prefix != "" {
			path = prefix + "." + item.Name
		}
		if item.IsGroup() {
			var err error
			out, err = accountMetas(item.Accounts, path, keys, out)
			if err != nil {
				return nil, err
			}
			continue
		}
		pk, ok := keys[path]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingAccount, path)
		}
		out = append(out, solana.AccountMeta{
			PublicKey:  pk,
			IsSigner:   item.IsSigner,
			IsWritable: item.IsMut,
		})
	}
	return out, nil
}

func (c *Coder) encodeInstruction(def *InstructionDef, args borsh.Value) ([]byte, error) {
	if args == nil {
		args = borsh.Struct{}
	}
	body, err := borsh.Encode(def.Args, args, c.maxEncodeSize)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", def.Name, err)
	}
	out := make([]byte, 0, idhash.DiscriminatorSize+len(body))
	out = append(out, def.Sighash[:]...)
	return append(out, body...), nil
}

// Instruction returns the builder registered for an instruction. name may be given
// in camelCase or snake_case.
func (c *Coder) Instruction(name string) (BuildInstructionFunc, bool) {
	b, ok := c.builders[idl.CamelCase(name)]
	return b, ok
}

// LookupInstruction returns the compiled instruction for a name in any case style.
func (c *Coder) LookupInstruction(name string) (*InstructionDef, bool) {
	def, ok := c.instructions[idl.CamelCase(name)]
	return def, ok
}

// InstructionNames lists the instruction keys in sorted order.
func (c *Coder) InstructionNames() []string {
	names := make([]string, 0, len(c.instructions))
	for name := range c.instructions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EncodeInstruction returns sighash followed by the encoded arguments.
func (c *Coder) EncodeInstruction(name string, args borsh.Value) ([]byte, error) {
	def, ok := c.LookupInstruction(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, name)
	}
	return c.encodeInstruction(def, args)
}

// DecodeInstruction identifies instruction data by its sighash and decodes the
// arguments. Short data or an unknown sighash yields nil, nil.
func (c *Coder) DecodeInstruction(data []byte) (*DecodedInstruction, error) {
	if len(data) < idhash.DiscriminatorSize {
		return nil, nil
	}
	def, ok := c.bySighash[[idhash.DiscriminatorSize]byte(data[:idhash.DiscriminatorSize])]
	if !ok {
		return nil, nil
	}
	args, err := borsh.Decode(def.Args, data[idhash.DiscriminatorSize:])
	if err != nil {
		return nil, fmt.Errorf("decode %s args: %w", def.Name, err)
	}
	return &DecodedInstruction{Name: def.Name, Args: args}, nil
}
