package scan

import "encoding/binary"

// HasMagic reports whether data begins with the given little-endian
// 32-bit magic value. Used before trusting a pinned data-segment offset
// or metadata-blob pointer — the same defensive posture applied before
// trusting a candidate pclntab header.
func HasMagic(data []byte, magic uint32) bool {
	if len(data) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(data) == magic
}
