// Package scan implements byte-pattern matching against foreign memory
// snapshots: YARA-flavored wildcard patterns compiled to binaryregexp,
// used to find Mono's mono_get_root_domain trampoline, plus HasMagic
// for the IL2CPP metadata magic check, since manascope reads live
// process memory rather than on-disk object files.
package scan

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"rsc.io/binaryregexp"
)

// Pattern is a compiled byte pattern: a binaryregexp for the full match
// plus the longest fixed byte run within it, used to pre-filter a large
// haystack before running the (much slower) regex over small windows.
type Pattern struct {
	length int
	re     *binaryregexp.Regexp
	needle []byte
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// Compile translates a YARA-style pattern such as
//
//	{ 48 8D 0? ?? ?? ?? ?? EB ?? }
//
// into a Pattern. `??` is a full wildcard byte, `0?` masks only the low
// nibble, `[x-y]` is a wildcard run of x..y bytes.
func Compile(pattern string) (*Pattern, error) {
	if !strings.HasPrefix(pattern, "{") || !strings.HasSuffix(pattern, "}") {
		return nil, errors.New("scan: pattern must be wrapped in { }")
	}
	pattern = strings.ToLower(strings.ReplaceAll(strings.Trim(pattern, "{}"), " ", ""))

	var regex strings.Builder
	var needle, tmpNeedle []byte
	patLen := 0

	flush := func() {
		if len(tmpNeedle) > len(needle) {
			needle = slices.Clone(tmpNeedle)
		}
		tmpNeedle = tmpNeedle[:0]
	}

	for i := 0; i < len(pattern); {
		c := pattern[i : i+1]
		var d string
		if i+2 <= len(pattern) {
			d = pattern[i+1 : i+2]
		}

		switch {
		case c == "?":
			if d != "?" {
				return nil, errors.New("scan: cannot mask the first nibble")
			}
			regex.WriteString(".")
			i += 2
			patLen++
			flush()

		case c == "[":
			end := strings.Index(pattern[i:], "]")
			if end == -1 {
				return nil, errors.New("scan: unbalanced [")
			}
			low, high, found := strings.Cut(pattern[i+1:i+end], "-")
			if !found {
				return nil, errors.New("scan: [] missing dash")
			}
			if _, err := strconv.Atoi(low); err != nil {
				return nil, errors.New("scan: invalid range low")
			}
			if _, err := strconv.Atoi(high); err != nil {
				return nil, errors.New("scan: invalid range high")
			}
			regex.WriteString(".{" + low + "," + high + "}")
			i += end + 1
			patLen++
			flush()

		case d == "?":
			if !isHex(c) {
				return nil, errors.New("scan: not a hex digit")
			}
			regex.WriteString(`[\x` + strings.ToUpper(c) + "0-\\x" + strings.ToUpper(c) + "F]")
			i += 2
			patLen++
			flush()

		case isHex(c) && isHex(d):
			regex.WriteString(`\x` + strings.ToUpper(c+d))
			b, err := strconv.ParseInt(c+d, 16, 64)
			if err != nil {
				return nil, errors.New("scan: not hex")
			}
			tmpNeedle = append(tmpNeedle, byte(b))
			i += 2
			patLen++

		default:
			return nil, errors.New("scan: unexpected character in pattern")
		}
	}
	flush()

	re, err := binaryregexp.Compile(regex.String())
	if err != nil {
		return nil, err
	}
	return &Pattern{length: patLen, re: re, needle: needle}, nil
}

// MustCompile is Compile but panics on error, for package-level pattern
// literals.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// FindAll locates every match of p within data. It first finds
// occurrences of the pattern's fixed needle (a cheap byte scan) and
// only runs the full regex over the small window around each
// candidate, so a multi-megabyte heap snapshot doesn't pay the regex
// engine's cost everywhere.
func (p *Pattern) FindAll(data []byte) []int {
	if len(p.needle) == 0 {
		var matches []int
		for _, idx := range p.re.FindAllIndex(data, -1) {
			matches = append(matches, idx[0])
		}
		return matches
	}

	var matches []int
	for _, needleAt := range findAllOccurrences(data, p.needle) {
		start := needleAt - p.length
		if start < 0 {
			start = 0
		}
		end := needleAt + p.length
		if end > len(data) {
			end = len(data)
		}
		for _, m := range p.re.FindAllIndex(data[start:end], -1) {
			matches = append(matches, m[0]+start)
		}
	}
	return matches
}

func findAllOccurrences(data, needle []byte) []int {
	var results []int
	if len(needle) == 0 {
		return results
	}
	for idx := 0; idx+len(needle) <= len(data); idx++ {
		if bytes.Equal(data[idx:idx+len(needle)], needle) {
			results = append(results, idx)
		}
	}
	return results
}
