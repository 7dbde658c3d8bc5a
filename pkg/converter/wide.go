package converter

import (
	"unicode/utf16"
	"unicode/utf8"
)

// DecodeUTF16 converts a NUL-terminated UTF-16 string, as passed by wchar_t
// callers on Windows, to Go. Unpaired surrogates become U+FFFD.
func DecodeUTF16(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// DecodeUTF32 converts a NUL-terminated UTF-32 string, as passed by wchar_t
// callers on Unix, to Go. Invalid code points become U+FFFD.
func DecodeUTF32(units []uint32) string {
	runes := make([]rune, 0, len(units))
	for _, u := range units {
		if u == 0 {
			break
		}
		r := rune(u)
		if u > utf8.MaxRune || !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		runes = append(runes, r)
	}
	return string(runes)
}
