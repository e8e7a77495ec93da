package filter

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// HasWildcard reports whether value holds an unescaped *, % or _.
func HasWildcard(value string) bool {
	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; {
		case r == '\\' && i+1 < len(runes) && isEscapable(runes[i+1]):
			i++
		case r == '*' || r == '%' || r == '_':
			return true
		}
	}
	return false
}

// HasEscape reports whether value escapes a wildcard or a backslash.
func HasEscape(value string) bool {
	runes := []rune(value)
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] == '\\' && isEscapable(runes[i+1]) {
			return true
		}
	}
	return false
}

func isEscapable(r rune) bool {
	return r == '*' || r == '%' || r == '_' || r == '\\'
}

// likeToRegex translates SQL LIKE: % is any run, _ is any single char.
func likeToRegex(pattern string) string {
	return translate(pattern, map[rune]string{'%': ".*", '_': "."})
}

// wildcardToRegex is LIKE extended with * as any run.
func wildcardToRegex(pattern string) string {
	return translate(pattern, map[rune]string{'%': ".*", '_': ".", '*': ".*"})
}

func translate(pattern string, wild map[rune]string) string {
	runes := []rune(pattern)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) && isEscapable(runes[i+1]) {
			i++
			b.WriteString(regexp2.Escape(string(runes[i])))
			continue
		}
		if repl, ok := wild[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteString(regexp2.Escape(string(r)))
	}
	return b.String()
}

// globToRegex translates shell globs: *, ? and bracket classes with ! or ^
// negation. An unterminated bracket is taken literally.
func globToRegex(pattern string) string {
	runes := []rune(pattern)
	var b strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := classEnd(runes, i)
			if end < 0 {
				b.WriteString(regexp2.Escape("["))
				continue
			}
			b.WriteString(classToRegex(runes[i+1 : end]))
			i = end
		default:
			b.WriteString(regexp2.Escape(string(r)))
		}
	}
	return b.String()
}

func classEnd(runes []rune, start int) int {
	j := start + 1
	if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
		j++
	}
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for ; j < len(runes); j++ {
		if runes[j] == ']' {
			return j
		}
	}
	return -1
}

func classToRegex(body []rune) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, r := range body {
		switch {
		case i == 0 && (r == '!' || r == '^'):
			b.WriteByte('^')
		case r == '\\' || r == '[' || r == ']' || (r == '^' && i > 0):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(']')
	return b.String()
}
