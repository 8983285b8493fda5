package binary

import (
	"bytes"
	"testing"
)

func TestAppendU32(t *testing.T) {
	tests := []struct {
		name string
		v    uint32
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one byte", 127, []byte{0x7f}},
		{"two bytes", 128, []byte{0x80, 0x01}},
		{"624485", 624485, []byte{0xe5, 0x8e, 0x26}},
		{"max", 0xffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendU32(nil, tt.v); !bytes.Equal(got, tt.want) {
				t.Errorf("AppendU32(%d) = %x, want %x", tt.v, got, tt.want)
			}
		})
	}
}

func TestAppendS64(t *testing.T) {
	tests := []struct {
		name string
		v    int64
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"minus one", -1, []byte{0x7f}},
		{"63", 63, []byte{0x3f}},
		{"64", 64, []byte{0xc0, 0x00}},
		{"-64", -64, []byte{0x40}},
		{"-65", -65, []byte{0xbf, 0x7f}},
		{"-123456", -123456, []byte{0xc0, 0xbb, 0x78}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendS64(nil, tt.v); !bytes.Equal(got, tt.want) {
				t.Errorf("AppendS64(%d) = %x, want %x", tt.v, got, tt.want)
			}
		})
	}
}

func TestWriterSection(t *testing.T) {
	var w Writer
	w.Fixed32(0x6d736100)
	w.Section(7, func(s *Writer) {
		s.Len(1)
		s.Name("vm_hooks")
	})
	want := []byte{0x00, 0x61, 0x73, 0x6d, 7, 10, 1, 8}
	want = append(want, "vm_hooks"...)
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("section = %x, want %x", w.Bytes(), want)
	}
	if w.Err() != nil {
		t.Errorf("unexpected error: %v", w.Err())
	}
}

func TestWriterLenOverflow(t *testing.T) {
	var w Writer
	w.Sized(func(s *Writer) { s.Len(-1) })
	if w.Err() == nil {
		t.Error("negative length should be reported")
	}
}
