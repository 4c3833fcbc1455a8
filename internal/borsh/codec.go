package borsh

import (
	"fmt"
	"math"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
)

// DefaultMaxSize is the encode buffer used when callers have no better bound.
const DefaultMaxSize = 1000

// MaxDepth bounds how many named type references a single value may nest through.
const MaxDepth = 128

// MaxZeroWidthElems bounds the element count of a vec whose elements occupy no bytes.
const MaxZeroWidthElems = 1 << 16

// Encode writes v according to l into a buffer of maxSize bytes and returns the
// written prefix. Nothing is returned on failure.
func Encode(l Layout, v Value, maxSize int) ([]byte, error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", ErrOverflow, maxSize)
	}
	w := newWriter(maxSize)
	if err := l.encode(w, v); err != nil {
		return nil, err
	}
	return w.sink.buf, nil
}

// Decode reads one value of layout l from the start of data. Trailing bytes are ignored.
func Decode(l Layout, data []byte) (Value, error) {
	v, _, err := DecodePrefix(l, data)
	return v, err
}

// DecodePrefix is like Decode and also returns the number of bytes consumed.
func DecodePrefix(l Layout, data []byte) (Value, int, error) {
	r := &reader{dec: bin.NewBorshDecoder(data)}
	v, err := l.decode(r)
	if err != nil {
		return nil, 0, err
	}
	return v, len(data) - r.dec.Remaining(), nil
}

// boundedBuffer refuses writes past limit and remembers the first refusal.
type boundedBuffer struct {
	buf   []byte
	limit int
	err   error
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if len(b.buf)+len(p) > b.limit {
		if b.err == nil {
			b.err = fmt.Errorf("%w: need %d bytes at offset %d, capacity %d", ErrOverflow, len(p), len(b.buf), b.limit)
		}
		return 0, b.err
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

type writer struct {
	enc   *bin.Encoder
	sink  *boundedBuffer
	depth int
}

func newWriter(limit int) *writer {
	sink := &boundedBuffer{buf: make([]byte, 0, min(limit, DefaultMaxSize)), limit: limit}
	return &writer{enc: bin.NewBorshEncoder(sink), sink: sink}
}

// check prefers the sink's overflow error so callers can match ErrOverflow.
func (w *writer) check(err error) error {
	if w.sink.err != nil {
		return w.sink.err
	}
	return err
}

func (w *writer) u8(v uint8) error   { return w.check(w.enc.WriteUint8(v)) }
func (w *writer) u16(v uint16) error { return w.check(w.enc.WriteUint16(v, bin.LE)) }
func (w *writer) u32(v uint32) error { return w.check(w.enc.WriteUint32(v, bin.LE)) }
func (w *writer) u64(v uint64) error { return w.check(w.enc.WriteUint64(v, bin.LE)) }

func (w *writer) raw(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return w.check(w.enc.WriteBytes(p, false))
}

func (w *writer) prefixed(p []byte) error {
	if err := w.u32(uint32(len(p))); err != nil {
		return err
	}
	return w.raw(p)
}

func (w *writer) enter() error {
	w.depth++
	if w.depth > MaxDepth {
		return fmt.Errorf("%w: nested deeper than %d types", ErrMismatch, MaxDepth)
	}
	return nil
}

func (w *writer) leave() { w.depth-- }

type reader struct {
	dec   *bin.Decoder
	depth int
}

func (r *reader) need(n int) error {
	if rest := r.dec.Remaining(); n < 0 || n > rest {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, rest)
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	return r.dec.ReadUint8()
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	return r.dec.ReadUint16(bin.LE)
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	return r.dec.ReadUint32(bin.LE)
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	return r.dec.ReadUint64(bin.LE)
}

func (r *reader) take(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.dec.ReadNBytes(n)
}

func (r *reader) prefixed() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

func (r *reader) enter() error {
	r.depth++
	if r.depth > MaxDepth {
		return fmt.Errorf("%w: nested deeper than %d types", ErrMismatch, MaxDepth)
	}
	return nil
}

func (r *reader) leave() { r.depth-- }

func (s *scalar) encode(w *writer, v Value) error {
	if v == nil || v.Kind() != s.kind {
		return mismatch(s, v)
	}
	switch x := v.(type) {
	case Bool:
		if x {
			return w.u8(1)
		}
		return w.u8(0)
	case U8:
		return w.u8(uint8(x))
	case I8:
		return w.u8(uint8(x))
	case U16:
		return w.u16(uint16(x))
	case I16:
		return w.u16(uint16(x))
	case U32:
		return w.u32(uint32(x))
	case I32:
		return w.u32(uint32(x))
	case U64:
		return w.u64(uint64(x))
	case I64:
		return w.u64(uint64(x))
	case U128:
		if err := w.u64(x.Lo); err != nil {
			return err
		}
		return w.u64(x.Hi)
	case I128:
		if err := w.u64(x.Lo); err != nil {
			return err
		}
		return w.u64(x.Hi)
	case F32:
		return w.u32(math.Float32bits(float32(x)))
	case F64:
		return w.u64(math.Float64bits(float64(x)))
	case String:
		if !utf8.ValidString(string(x)) {
			return fmt.Errorf("%w: string is not valid utf-8", ErrMismatch)
		}
		return w.prefixed([]byte(x))
	case Bytes:
		return w.prefixed(x)
	case PublicKey:
		return w.raw(x[:])
	}
	return mismatch(s, v)
}

func (s *scalar) decode(r *reader) (Value, error) {
	switch s.kind {
	case KindBool:
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, fmt.Errorf("%w: bool byte %d", ErrInvalidTag, b)
		}
		return Bool(b == 1), nil
	case KindU8:
		b, err := r.u8()
		return U8(b), err
	case KindI8:
		b, err := r.u8()
		return I8(int8(b)), err
	case KindU16:
		v, err := r.u16()
		return U16(v), err
	case KindI16:
		v, err := r.u16()
		return I16(int16(v)), err
	case KindU32:
		v, err := r.u32()
		return U32(v), err
	case KindI32:
		v, err := r.u32()
		return I32(int32(v)), err
	case KindU64:
		v, err := r.u64()
		return U64(v), err
	case KindI64:
		v, err := r.u64()
		return I64(int64(v)), err
	case KindU128, KindI128:
		lo, err := r.u64()
		if err != nil {
			return nil, err
		}
		hi, err := r.u64()
		if err != nil {
			return nil, err
		}
		if s.kind == KindU128 {
			return U128{Lo: lo, Hi: hi}, nil
		}
		return I128{Lo: lo, Hi: hi}, nil
	case KindF32:
		v, err := r.u32()
		return F32(math.Float32frombits(v)), err
	case KindF64:
		v, err := r.u64()
		return F64(math.Float64frombits(v)), err
	case KindString:
		b, err := r.prefixed()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("%w: string is not valid utf-8", ErrMismatch)
		}
		return String(b), nil
	case KindBytes:
		b, err := r.prefixed()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return Bytes(out), nil
	case KindPublicKey:
		b, err := r.take(32)
		if err != nil {
			return nil, err
		}
		var pk PublicKey
		copy(pk[:], b)
		return pk, nil
	}
	return nil, fmt.Errorf("%w: unsupported scalar %s", ErrMismatch, s.kind)
}

func (l *StructLayout) encode(w *writer, v Value) error {
	s, ok := v.(Struct)
	if !ok {
		return mismatch(l, v)
	}
	for _, f := range l.Fields {
		fv, ok := s.Get(f.Name)
		if !ok {
			fv, ok = absent(f.Layout)
		}
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrMismatch, f.Name)
		}
		if err := f.Layout.encode(w, fv); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func (l *StructLayout) decode(r *reader) (Value, error) {
	out := make(Struct, 0, len(l.Fields))
	for _, f := range l.Fields {
		fv, err := f.Layout.decode(r)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = append(out, Field{Name: f.Name, Value: fv})
	}
	return out, nil
}

// absent returns the value an omitted optional field encodes as.
func absent(l Layout) (Value, bool) {
	switch l.Kind() {
	case KindOption:
		return Option{}, true
	case KindCOption:
		return COption{}, true
	}
	return nil, false
}

func (l *TupleLayout) encode(w *writer, v Value) error {
	t, ok := v.(Tuple)
	if !ok {
		return mismatch(l, v)
	}
	if len(t) != len(l.Elems) {
		return fmt.Errorf("%w: tuple has %d elements, want %d", ErrMismatch, len(t), len(l.Elems))
	}
	for i, el := range l.Elems {
		if err := el.encode(w, t[i]); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (l *TupleLayout) decode(r *reader) (Value, error) {
	out := make(Tuple, 0, len(l.Elems))
	for i, el := range l.Elems {
		v, err := el.decode(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *EnumLayout) encode(w *writer, v Value) error {
	e, ok := v.(Enum)
	if !ok {
		return mismatch(l, v)
	}
	idx, ok := l.index[e.Variant]
	if !ok {
		return fmt.Errorf("%w: unknown variant %q", ErrMismatch, e.Variant)
	}
	if err := w.u8(uint8(idx)); err != nil {
		return err
	}
	variant := l.Variants[idx]
	if variant.Payload == nil {
		if e.Fields != nil {
			return fmt.Errorf("%w: variant %s carries no data", ErrMismatch, e.Variant)
		}
		return nil
	}
	if err := variant.Payload.encode(w, e.Fields); err != nil {
		return fmt.Errorf("variant %s: %w", e.Variant, err)
	}
	return nil
}

func (l *EnumLayout) decode(r *reader) (Value, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	if int(tag) >= len(l.Variants) {
		return nil, fmt.Errorf("%w: enum tag %d, %d variants declared", ErrInvalidTag, tag, len(l.Variants))
	}
	variant := l.Variants[tag]
	if variant.Payload == nil {
		return Enum{Variant: variant.Name}, nil
	}
	fields, err := variant.Payload.decode(r)
	if err != nil {
		return nil, fmt.Errorf("variant %s: %w", variant.Name, err)
	}
	return Enum{Variant: variant.Name, Fields: fields}, nil
}

func (l *OptionLayout) encode(w *writer, v Value) error {
	o, ok := v.(Option)
	if !ok {
		return mismatch(l, v)
	}
	if o.Value == nil {
		return w.u8(0)
	}
	if err := w.u8(1); err != nil {
		return err
	}
	return l.Inner.encode(w, o.Value)
}

func (l *OptionLayout) decode(r *reader) (Value, error) {
	flag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return Option{}, nil
	case 1:
		v, err := l.Inner.decode(r)
		if err != nil {
			return nil, err
		}
		return Option{Value: v}, nil
	}
	return nil, fmt.Errorf("%w: option flag %d", ErrInvalidTag, flag)
}

func (l *COptionLayout) encode(w *writer, v Value) error {
	o, ok := v.(COption)
	if !ok {
		return mismatch(l, v)
	}
	if o.Value == nil {
		return w.u32(0)
	}
	if err := w.u32(1); err != nil {
		return err
	}
	return l.Inner.encode(w, o.Value)
}

func (l *COptionLayout) decode(r *reader) (Value, error) {
	flag, err := r.u32()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return COption{}, nil
	case 1:
		v, err := l.Inner.decode(r)
		if err != nil {
			return nil, err
		}
		return COption{Value: v}, nil
	}
	return nil, fmt.Errorf("%w: coption discriminant %d", ErrInvalidTag, flag)
}

func (l *VecLayout) encode(w *writer, v Value) error {
	vec, ok := v.(Vec)
	if !ok {
		return mismatch(l, v)
	}
	if err := w.u32(uint32(len(vec))); err != nil {
		return err
	}
	for i, el := range vec {
		if err := l.Elem.encode(w, el); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (l *VecLayout) decode(r *reader) (Value, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	rest := r.dec.Remaining()
	switch width := minSize(l.Elem, nil); {
	case width > 0 && uint64(n)*uint64(width) > uint64(rest):
		return nil, fmt.Errorf("%w: %d elements of at least %d bytes, have %d", ErrTruncated, n, width, rest)
	case width == 0 && n > MaxZeroWidthElems:
		return nil, fmt.Errorf("%w: %d zero-width elements", ErrMismatch, n)
	}
	out := make(Vec, 0, n)
	for i := uint32(0); i < n; i++ {
		el, err := l.Elem.decode(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}
	return out, nil
}

func (l *ArrayLayout) encode(w *writer, v Value) error {
	arr, ok := v.(Array)
	if !ok {
		return mismatch(l, v)
	}
	if len(arr) != l.Len {
		return fmt.Errorf("%w: array has %d elements, want %d", ErrMismatch, len(arr), l.Len)
	}
	for i, el := range arr {
		if err := l.Elem.encode(w, el); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (l *ArrayLayout) decode(r *reader) (Value, error) {
	out := make(Array, 0, l.Len)
	for i := 0; i < l.Len; i++ {
		el, err := l.Elem.decode(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}
	return out, nil
}

func (r *Ref) encode(w *writer, v Value) error {
	t, err := r.resolved()
	if err != nil {
		return err
	}
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()
	return t.encode(w, v)
}

func (r *Ref) decode(rd *reader) (Value, error) {
	t, err := r.resolved()
	if err != nil {
		return nil, err
	}
	if err := rd.enter(); err != nil {
		return nil, err
	}
	defer rd.leave()
	return t.decode(rd)
}

// minSize is a lower bound on the encoded width of any value of l. A reference
// already on the path counts as zero.
func minSize(l Layout, path map[*Ref]bool) int {
	switch x := l.(type) {
	case *scalar:
		return scalarSize(x.kind)
	case *StructLayout:
		n := 0
		for _, f := range x.Fields {
			n = satAdd(n, minSize(f.Layout, path))
		}
		return n
	case *TupleLayout:
		n := 0
		for _, el := range x.Elems {
			n = satAdd(n, minSize(el, path))
		}
		return n
	case *EnumLayout, *OptionLayout:
		return 1
	case *COptionLayout, *VecLayout:
		return 4
	case *ArrayLayout:
		w := minSize(x.Elem, path)
		if w > 0 && x.Len > math.MaxInt32/w {
			return math.MaxInt32
		}
		return w * x.Len
	case *Ref:
		t := x.Target()
		if t == nil || path[x] {
			return 0
		}
		if path == nil {
			path = make(map[*Ref]bool)
		}
		path[x] = true
		defer delete(path, x)
		return minSize(t, path)
	}
	return 0
}

func scalarSize(k Kind) int {
	switch k {
	case KindBool, KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32, KindString, KindBytes:
		return 4
	case KindU64, KindI64, KindF64:
		return 8
	case KindU128, KindI128:
		return 16
	case KindPublicKey:
		return 32
	}
	return 0
}

func satAdd(a, b int) int {
	if a > math.MaxInt32-b {
		return math.MaxInt32
	}
	return a + b
}
