package hashing

import (
	"strings"
	"testing"
)

// SHA256 of "hello".
const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestComputeSHA256(t *testing.T) {
	hash, n, err := ComputeSHA256(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ComputeSHA256: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if hash != helloSHA {
		t.Errorf("hash = %q, want %q", hash, helloSHA)
	}
}

func TestSumSHA256(t *testing.T) {
	if got := SumSHA256([]byte("hello")); got != helloSHA {
		t.Errorf("SumSHA256 = %q, want %q", got, helloSHA)
	}
}
