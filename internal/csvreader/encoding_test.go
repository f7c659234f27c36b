package csvreader

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestDecode_UTF8PassThrough(t *testing.T) {
	src := strings.NewReader("a,b")
	r, err := Decode(src, "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r != io.Reader(src) {
		t.Error("UTF-8 input should not be wrapped")
	}
}

func TestDecode_ShiftJIS(t *testing.T) {
	// "日本" in Shift_JIS.
	raw := []byte{0x93, 0xfa, 0x96, 0x7b, ',', 'x', '\n'}
	r, err := Decode(bytes.NewReader(raw), "Shift_JIS")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "日本,x\n" {
		t.Errorf("decoded = %q, want %q", out, "日本,x\n")
	}
}

func TestDecode_Latin1(t *testing.T) {
	r, err := Decode(bytes.NewReader([]byte{'c', 'a', 'f', 0xe9}), "ISO-8859-1")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, _ := io.ReadAll(r)
	if string(out) != "café" {
		t.Errorf("decoded = %q, want %q", out, "café")
	}
}

func TestDecode_Unknown(t *testing.T) {
	if _, err := Decode(strings.NewReader(""), "no-such-charset"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
