package phonetic

import "strings"

// Metaphone returns the original (Philips, 1990) Metaphone code of every word
// in s, joined by single spaces. Words are split on anything that is not an
// ASCII letter.
func Metaphone(s string) string {
	words := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return r < 'A' || r > 'Z'
	})
	codes := make([]string, 0, len(words))
	for _, w := range words {
		if code := metaphoneWord(w); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}

func isVowel(c byte) bool {
	switch c {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

func metaphoneWord(w string) string {
	if w == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(w, "AE"), strings.HasPrefix(w, "GN"),
		strings.HasPrefix(w, "KN"), strings.HasPrefix(w, "PN"),
		strings.HasPrefix(w, "WR"):
		w = w[1:]
	case w[0] == 'X':
		w = "S" + w[1:]
	case strings.HasPrefix(w, "WH"):
		w = "W" + w[2:]
	}

	n := len(w)
	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return w[i]
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		c := w[i]
		// Doubled letters collapse, except C.
		if c != 'C' && i > 0 && at(i-1) == c {
			continue
		}
		prev, next, after := at(i-1), at(i+1), at(i+2)

		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				b.WriteByte(c)
			}
		case 'B':
			if !(prev == 'M' && i == n-1) {
				b.WriteByte('B')
			}
		case 'C':
			switch {
			case next == 'I' && after == 'A':
				b.WriteByte('X')
			case next == 'H':
				if prev == 'S' {
					b.WriteByte('K')
				} else {
					b.WriteByte('X')
				}
				i++
			case next == 'I' || next == 'E' || next == 'Y':
				if prev != 'S' {
					b.WriteByte('S')
				}
			default:
				b.WriteByte('K')
			}
		case 'D':
			if next == 'G' && (after == 'E' || after == 'I' || after == 'Y') {
				b.WriteByte('J')
				i++
			} else {
				b.WriteByte('T')
			}
		case 'G':
			switch {
			case next == 'H' && after != 0 && !isVowel(after):
				// silent: "night", "bought"
			case next == 'N' && (i+2 == n || (after == 'E' && at(i+3) == 'D' && i+4 == n)):
				// silent: "sign", "signed"
			case next == 'I' || next == 'E' || next == 'Y':
				b.WriteByte('J')
			default:
				b.WriteByte('K')
			}
		case 'H':
			if isVowel(prev) && !isVowel(next) {
				break
			}
			switch prev {
			case 'C', 'S', 'P', 'T', 'G':
			default:
				b.WriteByte('H')
			}
		case 'K':
			if prev != 'C' {
				b.WriteByte('K')
			}
		case 'P':
			if next == 'H' {
				b.WriteByte('F')
			} else {
				b.WriteByte('P')
			}
		case 'Q':
			b.WriteByte('K')
		case 'S':
			switch {
			case next == 'H':
				b.WriteByte('X')
				i++
			case next == 'I' && (after == 'O' || after == 'A'):
				b.WriteByte('X')
			default:
				b.WriteByte('S')
			}
		case 'T':
			switch {
			case next == 'I' && (after == 'O' || after == 'A'):
				b.WriteByte('X')
			case next == 'H':
				b.WriteByte('0')
				i++
			case next == 'C' && after == 'H':
				// silent: "watch"
			default:
				b.WriteByte('T')
			}
		case 'V':
			b.WriteByte('F')
		case 'W', 'Y':
			if isVowel(next) {
				b.WriteByte(c)
			}
		case 'X':
			b.WriteString("KS")
		case 'Z':
			b.WriteByte('S')
		default: // F, J, L, M, N, R
			b.WriteByte(c)
		}
	}
	return b.String()
}
