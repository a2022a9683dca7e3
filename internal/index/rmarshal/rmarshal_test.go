package rmarshal

import (
	"bytes"
	"reflect"
	"testing"
)

// Golden byte fixtures captured from the reference writer.
func TestMarshalGolden(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []byte
	}{
		{
			name: "empty array",
			in:   []any{},
			want: []byte("\x04\b[\x00"),
		},
		{
			name: "single string",
			in:   []any{"a"},
			want: []byte("\x04\b[\x06I\"\x06a\x06:\x06ET"),
		},
		{
			name: "repeated string uses object link",
			in:   []any{"a", "a"},
			want: []byte("\x04\b[\aI\"\x06a\x06:\x06ET@\x06"),
		},
		{
			name: "symbol keyed hash",
			in:   Hash{{Key: Symbol("name"), Value: "foo"}},
			want: []byte("\x04\b{\x06:\tnameI\"\bfoo\x06:\x06ET"),
		},
		{
			name: "spec triple",
			in:   []any{[]any{"rake", "13.0.6", "ruby"}},
			want: []byte("\x04\b[\x06[\bI\"\trake\x06:\x06ETI\"\v13.0.6\x06;\x00TI\"\truby\x06;\x00T"),
		},
		{
			name: "wide fixnum",
			in:   int64(1) << 32,
			want: []byte("\x04\bi\x05\x00\x00\x00\x00\x01"),
		},
		{
			name: "nil true false",
			in:   []any{nil, true, false},
			want: []byte("\x04\b[\b0TF"),
		},
		{
			name: "fixnums",
			in:   []any{0, 1, -1, 1000, -1000},
			want: []byte("\x04\b[\ni\x00i\x06i\xfai\x02\xe8\x03i\xfe\x18\xfc"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Marshal = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarshalUnsupportedType(t *testing.T) {
	if _, err := Marshal([]any{3.14}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestUnmarshalRejectsBadStream(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"wrong version", []byte("\x05\x08[\x00")},
		{"truncated", []byte("\x04\b[\x06")},
		{"trailing bytes", []byte("\x04\b[\x00xx")},
		{"bad object link", []byte("\x04\b[\x06@\x10")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	in := []any{
		[]any{"rake", "13.0.6", "ruby"},
		[]any{"rake", "12.3.3", "ruby"},
		Hash{
			{Key: Symbol("name"), Value: "rails"},
			{Key: Symbol("dependencies"), Value: []any{[]any{"rake", ">= 12.2"}}},
		},
		int64(42),
		true,
		nil,
	}

	encoded, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	// Re-encoding the decoded structure must reproduce the exact bytes.
	reencoded, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("re-encoded bytes differ:\n  first  = %q\n  second = %q", encoded, reencoded)
	}
}

func TestUnmarshalValues(t *testing.T) {
	encoded, err := Marshal([]any{"foo", "foo", Symbol("bar"), Symbol("bar"), int64(-300)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	v, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := []any{"foo", "foo", Symbol("bar"), Symbol("bar"), int64(-300)}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Unmarshal = %#v, want %#v", v, want)
	}
}

func TestLongBoundaries(t *testing.T) {
	values := []int64{
		0, 1, 122, 123, 255, 256, 65535, 1 << 24, 1<<31 - 1,
		1 << 32, 1<<40 + 7, 1<<63 - 1,
		-1, -123, -124, -256, -65536, -(1 << 31), -(1 << 32), -(1 << 63),
	}
	for _, n := range values {
		encoded, err := Marshal(n)
		if err != nil {
			t.Fatalf("Marshal(%d): %v", n, err)
		}
		v, err := Unmarshal(encoded)
		if err != nil {
			t.Fatalf("Unmarshal(%d): %v", n, err)
		}
		if v != n {
			t.Errorf("round trip of %d gave %v", n, v)
		}
	}
}
