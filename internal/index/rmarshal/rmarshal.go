// Package rmarshal encodes and decodes the historical binary object
// serialization format (stream version 4.8) that gem clients consume.
//
// The supported value set is what the registry's index artifacts need:
// nil, booleans, fixnums, UTF-8 strings, symbols, arrays, and ordered
// hashes. Strings are emitted with the UTF-8 encoding instance variable
// the reference writer attaches; repeated string values are replaced by
// object links into the stream's object table, and repeated symbols by
// symbol links, so readers that rely on interning see the same structure
// the reference writer produces.
package rmarshal

import (
	"bytes"
	"fmt"
)

const (
	majorVersion = 4
	minorVersion = 8
)

// Symbol is a value encoded as a symbol rather than a string.
type Symbol string

// Pair is one key/value entry of a Hash.
type Pair struct {
	Key   any
	Value any
}

// Hash is an ordered hash. Order is preserved on the wire, which keeps
// encoding deterministic.
type Hash []Pair

// Marshal encodes v into the 4.8 stream format.
func Marshal(v any) ([]byte, error) {
	e := &encoder{
		strings: make(map[string]int),
		symbols: make(map[Symbol]int),
	}
	e.buf.WriteByte(majorVersion)
	e.buf.WriteByte(minorVersion)
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer

	// strings maps an emitted string value to its object-table index, so
	// a repeated value becomes an object link. The reference writer dedups
	// on object identity; keying on value reproduces its output for the
	// interned strings index readers care about.
	strings map[string]int
	symbols map[Symbol]int

	// objectCount tracks object-table slots. Arrays and hashes occupy a
	// slot even though they are never linked to, so that string link
	// indexes line up with the reference reader's table.
	objectCount int
}

func (e *encoder) value(v any) error {
	switch t := v.(type) {
	case nil:
		e.buf.WriteByte('0')
	case bool:
		if t {
			e.buf.WriteByte('T')
		} else {
			e.buf.WriteByte('F')
		}
	case int:
		e.buf.WriteByte('i')
		e.long(int64(t))
	case int64:
		e.buf.WriteByte('i')
		e.long(t)
	case string:
		e.string(t)
	case Symbol:
		e.symbol(t)
	case []any:
		e.objectCount++
		e.buf.WriteByte('[')
		e.long(int64(len(t)))
		for _, el := range t {
			if err := e.value(el); err != nil {
				return err
			}
		}
	case Hash:
		e.objectCount++
		e.buf.WriteByte('{')
		e.long(int64(len(t)))
		for _, p := range t {
			if err := e.value(p.Key); err != nil {
				return err
			}
			if err := e.value(p.Value); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("rmarshal: unsupported type %T", v)
	}
	return nil
}

// string writes a UTF-8 string with its encoding ivar, or an object link
// if the same value was written before.
func (e *encoder) string(s string) {
	if idx, ok := e.strings[s]; ok {
		e.buf.WriteByte('@')
		e.long(int64(idx))
		return
	}
	e.strings[s] = e.objectCount
	e.objectCount++

	e.buf.WriteByte('I')
	e.buf.WriteByte('"')
	e.long(int64(len(s)))
	e.buf.WriteString(s)
	e.long(1)
	e.symbol("E")
	e.buf.WriteByte('T')
}

func (e *encoder) symbol(s Symbol) {
	if idx, ok := e.symbols[s]; ok {
		e.buf.WriteByte(';')
		e.long(int64(idx))
		return
	}
	e.symbols[s] = len(e.symbols)

	e.buf.WriteByte(':')
	e.long(int64(len(s)))
	e.buf.WriteString(string(s))
}

// long writes the format's variable-length integer: zero is one byte,
// small magnitudes are offset into a single byte, and anything else is a
// signed length byte followed by little-endian payload bytes.
func (e *encoder) long(n int64) {
	switch {
	case n == 0:
		e.buf.WriteByte(0)
	case n > 0 && n < 123:
		e.buf.WriteByte(byte(n + 5))
	case n < 0 && n > -124:
		e.buf.WriteByte(byte(n - 5))
	default:
		var payload [8]byte
		var k int
		for k = 0; k < 8; k++ {
			payload[k] = byte(n & 0xff)
			n >>= 8
			if n == 0 {
				e.buf.WriteByte(byte(k + 1))
				break
			}
			if n == -1 {
				e.buf.WriteByte(byte(-(k + 1)))
				break
			}
		}
		e.buf.Write(payload[:k+1])
	}
}
