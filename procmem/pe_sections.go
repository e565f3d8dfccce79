//go:build windows

package procmem

import (
	"encoding/binary"
	"fmt"
)

type peSection struct {
	virtualAddress  uint32
	virtualSize     uint32
	characteristics uint32
}

// peSections parses just enough of a PE image, read live out of a
// process, to list its section table. It does not need to resolve
// imports, relocations, or debug directories — only the coarse
// section-to-permissions mapping RuntimeLocator uses to find a
// module's writable data section.
func peSections(image []byte) ([]peSection, error) {
	if len(image) < 0x40 || string(image[0:2]) != "MZ" {
		return nil, fmt.Errorf("missing MZ signature")
	}
	peOff := binary.LittleEndian.Uint32(image[0x3c:])
	if int(peOff)+24 > len(image) || string(image[peOff:peOff+4]) != "PE\x00\x00" {
		return nil, fmt.Errorf("missing PE signature")
	}

	numSections := binary.LittleEndian.Uint16(image[peOff+6:])
	sizeOptional := binary.LittleEndian.Uint16(image[peOff+20:])
	sectionsOff := peOff + 24 + uint32(sizeOptional)

	const sectionHeaderSize = 40
	sections := make([]peSection, 0, numSections)
	for i := uint16(0); i < numSections; i++ {
		off := sectionsOff + uint32(i)*sectionHeaderSize
		if int(off)+sectionHeaderSize > len(image) {
			break
		}
		sections = append(sections, peSection{
			virtualSize:     binary.LittleEndian.Uint32(image[off+8:]),
			virtualAddress:  binary.LittleEndian.Uint32(image[off+12:]),
			characteristics: binary.LittleEndian.Uint32(image[off+36:]),
		})
	}
	return sections, nil
}
