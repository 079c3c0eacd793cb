package classfile

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var errShortSequence = errors.New("sequence cut short")

// DecodeModifiedUTF8 decodes the class-file variant of UTF-8: NUL is encoded
// as two bytes, supplementary characters as a pair of three-byte surrogates,
// and four-byte forms are not allowed. A surrogate without its partner is
// kept as its three-byte WTF-8 form, so distinct inputs stay distinct.
func DecodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", fmt.Errorf("nul byte at %d", i)
		case c < 0x80:
			sb.WriteByte(c)
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) {
				return "", fmt.Errorf("at %d: %w", i, errShortSequence)
			}
			if b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("bad continuation byte at %d", i+1)
			}
			sb.WriteRune(rune(c&0x1F)<<6 | rune(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			r, err := decode3(b, i)
			if err != nil {
				return "", err
			}
			if r >= 0xD800 && r <= 0xDBFF && i+5 < len(b) && b[i+3] == 0xED {
				low, err := decode3(b, i+3)
				if err == nil && low >= 0xDC00 && low <= 0xDFFF {
					sb.WriteRune(0x10000 + (r-0xD800)<<10 + (low - 0xDC00))
					i += 6
					continue
				}
			}
			if r >= 0xD800 && r <= 0xDFFF {
				sb.Write(b[i : i+3])
			} else {
				sb.WriteRune(r)
			}
			i += 3
		default:
			return "", fmt.Errorf("illegal byte 0x%02x at %d", c, i)
		}
	}
	return sb.String(), nil
}

func decode3(b []byte, i int) (rune, error) {
	if i+2 >= len(b) {
		return 0, fmt.Errorf("at %d: %w", i, errShortSequence)
	}
	if b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
		return 0, fmt.Errorf("bad continuation byte after %d", i)
	}
	return rune(b[i]&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F), nil
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8. Lone surrogates
// in WTF-8 form are copied through.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 && isSurrogateWTF8(s[i:]) {
			out = append(out, s[i:i+3]...)
			i += 3
			continue
		}
		i += size
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = append(out, 0xE0|byte(r>>12), 0x80|byte((r>>6)&0x3F), 0x80|byte(r&0x3F))
		default:
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			for _, s := range []rune{hi, lo} {
				out = append(out, 0xE0|byte(s>>12), 0x80|byte((s>>6)&0x3F), 0x80|byte(s&0x3F))
			}
		}
	}
	return out
}

// isSurrogateWTF8 reports whether s starts with the WTF-8 form of a code
// point in U+D800..U+DFFF.
func isSurrogateWTF8(s string) bool {
	return len(s) >= 3 && s[0] == 0xED && s[1]&0xE0 == 0xA0 && s[2]&0xC0 == 0x80
}
