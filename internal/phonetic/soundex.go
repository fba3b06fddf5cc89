// Package phonetic encodes words into sound-alike codes so that misspelled
// attribute values ("Samsng", "Samsung") still compare equal.
package phonetic

import "strings"

// soundexCodes maps A-Z to their Soundex digit. Vowels and Y map to '0' and
// act as separators; H and W map to 0 and are skipped entirely.
var soundexCodes = [26]byte{
	'0', '1', '2', '3', '0', '1', '2', 0, '0', '2', '2', '4', '5',
	'5', '0', '1', '2', '6', '2', '3', '0', '1', 0, '2', '0', '2',
}

// Soundex returns the four-character American Soundex code of the ASCII
// letters in s, or "" when s has none.
func Soundex(s string) string {
	letters := asciiLetters(s)
	if len(letters) == 0 {
		return ""
	}

	out := make([]byte, 1, 4)
	out[0] = letters[0]
	last := soundexCodes[letters[0]-'A']
	for _, c := range letters[1:] {
		if len(out) == 4 {
			break
		}
		code := soundexCodes[c-'A']
		switch {
		case code == 0: // H, W
			continue
		case code == '0':
			last = '0'
			continue
		case code != last:
			out = append(out, code)
		}
		last = code
	}
	for len(out) < 4 {
		out = append(out, '0')
	}
	return string(out)
}

// asciiLetters returns the uppercase A-Z letters of s in order.
func asciiLetters(s string) []byte {
	s = strings.ToUpper(s)
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			out = append(out, c)
		}
	}
	return out
}
