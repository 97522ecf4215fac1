package archive

// maskModulus bounds the per-byte offset of the stream mask.
const maskModulus = 26

// Mask applies the keyed stream mask to buf in place. Even positions are
// shifted up by (key+i) mod 26 and odd positions down, with uint8 wraparound.
// The archive uses the header length as key.
func Mask(buf []byte, key int) {
	for i := range buf {
		offset := byte((key + i) % maskModulus)
		if i%2 == 0 {
			buf[i] += offset
		} else {
			buf[i] -= offset
		}
	}
}

// Unmask reverses Mask for the same key.
func Unmask(buf []byte, key int) {
	for i := range buf {
		offset := byte((key + i) % maskModulus)
		if i%2 == 0 {
			buf[i] -= offset
		} else {
			buf[i] += offset
		}
	}
}
