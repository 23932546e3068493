package render

import (
	"image/color"
	"strconv"
	"strings"
)

// ParseHex parses #rgb, #rgba, #rrggbb or #rrggbbaa. The leading # is optional.
func ParseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3, 4:
		long := make([]byte, 0, 8)
		for i := 0; i < len(s); i++ {
			long = append(long, s[i], s[i])
		}
		s = string(long)
	case 6, 8:
	default:
		return color.NRGBA{}, false
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

// opaque parses hex as a fill colour. Alpha is dropped and anything
// unparseable falls back to DefaultBackground.
func opaque(hex string) color.NRGBA {
	c, ok := ParseHex(hex)
	if !ok {
		c, _ = ParseHex(DefaultBackground)
	}
	c.A = 255
	return c
}
