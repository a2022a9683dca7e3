package rmarshal

import (
	"fmt"
)

// Unmarshal decodes a 4.8 stream produced by Marshal (or a compatible
// writer) back into Go values: strings, Symbols, int64s, bools, []any
// arrays, and Hash ordered hashes. Object and symbol links resolve to the
// previously decoded value.
func Unmarshal(data []byte) (any, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("rmarshal: stream too short")
	}
	if data[0] != majorVersion || data[1] != minorVersion {
		return nil, fmt.Errorf("rmarshal: unsupported stream version %d.%d", data[0], data[1])
	}
	d := &decoder{data: data, pos: 2}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(data) {
		return nil, fmt.Errorf("rmarshal: %d trailing byte(s)", len(data)-d.pos)
	}
	return v, nil
}

type decoder struct {
	data []byte
	pos  int

	// objects holds every table-registered object in registration order,
	// so '@' links can index into it. Containers register before their
	// children, mirroring the encoder.
	objects []any
	symbols []Symbol
}

func (d *decoder) value() (any, error) {
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case '0':
		return nil, nil
	case 'T':
		return true, nil
	case 'F':
		return false, nil
	case 'i':
		return d.long()
	case '"':
		return d.string()
	case 'I':
		return d.ivar()
	case ':':
		return d.symbol()
	case ';':
		idx, err := d.long()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(len(d.symbols)) {
			return nil, fmt.Errorf("rmarshal: symbol link %d out of range", idx)
		}
		return d.symbols[idx], nil
	case '@':
		idx, err := d.long()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(len(d.objects)) {
			return nil, fmt.Errorf("rmarshal: object link %d out of range", idx)
		}
		return d.objects[idx], nil
	case '[':
		return d.array()
	case '{':
		return d.hash()
	default:
		return nil, fmt.Errorf("rmarshal: unsupported tag %q at offset %d", tag, d.pos-1)
	}
}

func (d *decoder) array() (any, error) {
	slot := d.register(nil)
	n, err := d.long()
	if err != nil {
		return nil, err
	}
	arr := make([]any, 0, n)
	for i := int64(0); i < n; i++ {
		el, err := d.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, el)
	}
	d.objects[slot] = arr
	return arr, nil
}

func (d *decoder) hash() (any, error) {
	slot := d.register(nil)
	n, err := d.long()
	if err != nil {
		return nil, err
	}
	h := make(Hash, 0, n)
	for i := int64(0); i < n; i++ {
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		h = append(h, Pair{Key: k, Value: v})
	}
	d.objects[slot] = h
	return h, nil
}

// ivar reads an instance-variable-wrapped object: the inner object, an
// ivar count, and the ivar pairs. The pairs (the string encoding flag in
// practice) are consumed and discarded; the inner object keeps its single
// object-table slot.
func (d *decoder) ivar() (any, error) {
	inner, err := d.value()
	if err != nil {
		return nil, err
	}
	n, err := d.long()
	if err != nil {
		return nil, err
	}
	for i := int64(0); i < n; i++ {
		if _, err := d.value(); err != nil {
			return nil, err
		}
		if _, err := d.value(); err != nil {
			return nil, err
		}
	}
	return inner, nil
}

func (d *decoder) string() (any, error) {
	b, err := d.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	s := string(b)
	d.register(s)
	return s, nil
}

func (d *decoder) symbol() (any, error) {
	b, err := d.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	sym := Symbol(b)
	d.symbols = append(d.symbols, sym)
	return sym, nil
}

func (d *decoder) register(v any) int {
	d.objects = append(d.objects, v)
	return len(d.objects) - 1
}

func (d *decoder) lengthPrefixed() ([]byte, error) {
	n, err := d.long()
	if err != nil {
		return nil, err
	}
	if n < 0 || d.pos+int(n) > len(d.data) {
		return nil, fmt.Errorf("rmarshal: length %d exceeds stream", n)
	}
	b := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return b, nil
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("rmarshal: unexpected end of stream")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// long reads the variable-length integer encoding written by encoder.long.
func (d *decoder) long() (int64, error) {
	c, err := d.byte()
	if err != nil {
		return 0, err
	}
	n := int64(int8(c))
	switch {
	case n == 0:
		return 0, nil
	case n > 5:
		return n - 5, nil
	case n < -5:
		return n + 5, nil
	}
	// n is now the signed payload byte count, 1..8 or -1..-8.
	size := n
	if size < 0 {
		size = -size
	}
	if size > 8 {
		return 0, fmt.Errorf("rmarshal: invalid long size %d", size)
	}
	var v int64
	if n < 0 {
		v = -1
	}
	for i := int64(0); i < size; i++ {
		b, err := d.byte()
		if err != nil {
			return 0, err
		}
		v &^= int64(0xff) << (8 * i)
		v |= int64(b) << (8 * i)
	}
	return v, nil
}
