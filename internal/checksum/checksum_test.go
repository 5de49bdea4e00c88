package checksum

import (
	"strings"
	"testing"
)

func TestSum_Stable(t *testing.T) {
	if Sum([]byte("a")) != Sum([]byte("a")) {
		t.Error("same input must give same digest")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different input must give different digests")
	}
	if len(Sum(nil)) != 64 {
		t.Errorf("digest length = %d, want 64", len(Sum(nil)))
	}
}

func TestReadAll(t *testing.T) {
	data, sum, err := ReadAll(strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello" || sum != Sum([]byte("hello")) {
		t.Errorf("ReadAll = %q, %s", data, sum)
	}

	data, sum, err = ReadAll(nil)
	if err != nil || len(data) != 0 || sum != Sum(nil) {
		t.Errorf("ReadAll(nil) = %q, %s, %v", data, sum, err)
	}
}
