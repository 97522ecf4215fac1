package archive

import (
	"bytes"
	"testing"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		key  int
		want []byte
	}{
		{
			name: "empty buffer",
			in:   []byte{},
			key:  7,
			want: []byte{},
		},
		{
			name: "even and odd positions",
			in:   []byte{10, 10, 10, 10},
			key:  0,
			want: []byte{10, 9, 12, 7},
		},
		{
			name: "offset wraps at 26",
			in:   []byte{0, 0},
			key:  25,
			want: []byte{25, 0},
		},
		{
			name: "byte wraparound",
			in:   []byte{250, 3},
			key:  10,
			want: []byte{4, 248},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.Clone(tt.in)
			Mask(buf, tt.key)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("Mask() = %v, want %v", buf, tt.want)
			}
		})
	}
}

func TestMask_UnmaskInverse(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i * 7)
	}

	for key := 0; key < 300; key++ {
		buf := bytes.Clone(data)
		Mask(buf, key)
		Unmask(buf, key)
		if !bytes.Equal(buf, data) {
			t.Fatalf("Unmask(Mask(data, %d)) did not restore input", key)
		}

		buf = bytes.Clone(data)
		Unmask(buf, key)
		Mask(buf, key)
		if !bytes.Equal(buf, data) {
			t.Fatalf("Mask(Unmask(data, %d)) did not restore input", key)
		}
	}
}
