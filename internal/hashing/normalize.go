package hashing

import (
	"strings"
	"unicode/utf8"

	"github.com/kpblcaoo/llmstruct/internal/model"
)

// commentStyle describes how a language writes comments and string literals.
type commentStyle struct {
	line         []string // line comment markers
	block        bool     // supports /* ... */
	quotes       string   // single-line quote characters
	multiQuote   string   // quote characters that may span lines (`, or ''' / """)
	triple       bool     // ''' and """ open multi-line strings
	charLiterals bool     // ' opens a char literal or a lifetime, never a string
}

func styleFor(lang model.Language) commentStyle {
	switch lang {
	case model.LanguagePython:
		return commentStyle{line: []string{"#"}, quotes: `"'`, triple: true}
	case model.LanguageRuby:
		return commentStyle{line: []string{"#"}, quotes: `"'`}
	case model.LanguageGo:
		return commentStyle{line: []string{"//"}, block: true, quotes: `"'`, multiQuote: "`"}
	case model.LanguageTypeScript, model.LanguageJavaScript:
		return commentStyle{line: []string{"//"}, block: true, quotes: `"'`, multiQuote: "`"}
	case model.LanguageRust:
		// ' starts lifetimes as well as char literals.
		return commentStyle{line: []string{"//"}, block: true, quotes: `"`, charLiterals: true}
	case model.LanguagePHP:
		return commentStyle{line: []string{"//", "#"}, block: true, quotes: `"'`}
	case model.LanguageJava, model.LanguageC, model.LanguageCPP:
		return commentStyle{line: []string{"//"}, block: true, quotes: `"'`}
	}
	return commentStyle{line: []string{"#"}, quotes: `"'`}
}

// NormalizeSource strips comments outside string literals, trims every line,
// collapses runs of spaces and tabs, and drops empty lines.
func NormalizeSource(source string, lang model.Language) string {
	style := styleFor(lang)
	stripped := stripComments(source, style)

	var out []string
	for _, line := range strings.Split(stripped, "\n") {
		line = collapseSpaces(strings.TrimSpace(line), style)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// stripComments is a single-pass scanner that tracks quote state so comment
// markers inside string literals are kept.
func stripComments(src string, style commentStyle) string {
	var b strings.Builder
	b.Grow(len(src))

	var (
		quote   string // active closing delimiter, empty when outside a string
		inBlock bool
		inLine  bool
		escaped bool
	)

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				b.WriteByte(c)
			}
			continue

		case inBlock:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				b.WriteByte(c)
			}
			continue

		case quote != "":
			b.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '\n' && len(quote) == 1 && !strings.ContainsRune(style.multiQuote, rune(quote[0])) {
				// unterminated single-line literal
				quote = ""
				continue
			}
			if strings.HasPrefix(src[i:], quote) {
				b.WriteString(quote[1:])
				i += len(quote) - 1
				quote = ""
			}
			continue
		}

		if style.triple && (strings.HasPrefix(src[i:], `"""`) || strings.HasPrefix(src[i:], `'''`)) {
			quote = src[i : i+3]
			b.WriteString(quote)
			i += 2
			continue
		}
		if style.charLiterals && c == '\'' {
			n := max(charLiteralLen(src[i:]), 1)
			b.WriteString(src[i : i+n])
			i += n - 1
			continue
		}
		if strings.IndexByte(style.quotes, c) >= 0 || strings.IndexByte(style.multiQuote, c) >= 0 {
			quote = string(c)
			b.WriteByte(c)
			continue
		}
		if style.block && c == '/' && i+1 < len(src) && src[i+1] == '*' {
			inBlock = true
			i++
			continue
		}
		if hasLineMarker(src[i:], style.line) {
			inLine = true
			continue
		}
		b.WriteByte(c)
	}

	return b.String()
}

func hasLineMarker(s string, markers []string) bool {
	for _, m := range markers {
		if strings.HasPrefix(s, m) {
			return true
		}
	}
	return false
}

// charLiteralLen returns the length of the char literal at the start of s
// ('x', '\n', '\u{1F600}'), or 0 when the quote starts a lifetime such as 'a.
func charLiteralLen(s string) int {
	if len(s) < 3 || s[0] != '\'' {
		return 0
	}
	if s[1] == '\\' {
		end := strings.IndexByte(s[3:], '\'')
		if end < 0 || end > 8 {
			return 0
		}
		return end + 4
	}
	if s[1] == '\'' || s[1] == '\n' {
		return 0
	}
	_, size := utf8.DecodeRuneInString(s[1:])
	if 1+size < len(s) && s[1+size] == '\'' {
		return size + 2
	}
	return 0
}

// collapseSpaces replaces runs of spaces and tabs outside string and char
// literals with a single space.
func collapseSpaces(line string, style commentStyle) string {
	var b strings.Builder
	b.Grow(len(line))

	var quote byte
	prevSpace := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				b.WriteByte(line[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == ' ' || c == '\t' {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		if style.charLiterals && c == '\'' {
			n := max(charLiteralLen(line[i:]), 1)
			b.WriteString(line[i : i+n])
			i += n - 1
			continue
		}
		if c == '"' || c == '\'' || c == '`' {
			quote = c
		}
		b.WriteByte(c)
	}
	return b.String()
}
