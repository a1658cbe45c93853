// Package sqltoken is a small SQL lexer.
//
// It recognizes just enough of the grammar to classify statements and to
// rewrite single tokens in place: words, quoted identifiers, string literals,
// numbers, punctuation and comments. Every token keeps its byte span so
// callers can splice replacements into the original text.
package sqltoken

import (
	"strings"
)

// Kind is a token category.
type Kind int

// Token kinds.
const (
	Word        Kind = iota // keyword or bare identifier
	QuotedIdent             // "ident" or `ident`
	String                  // 'literal'
	Number
	Punct
	Comment
)

// Token is one lexeme of the input.
type Token struct {
	Kind  Kind
	Text  string // raw text, quotes included
	Start int    // byte offset of the first byte
	End   int    // byte offset past the last byte
}

// Is reports whether t is a word equal to keyword, ignoring case.
func (t Token) Is(keyword string) bool {
	return t.Kind == Word && strings.EqualFold(t.Text, keyword)
}

// IsPunct reports whether t is the punctuation character c.
func (t Token) IsPunct(c byte) bool {
	return t.Kind == Punct && len(t.Text) == 1 && t.Text[0] == c
}

// IsName reports whether t can be part of an identifier.
func (t Token) IsName() bool {
	return t.Kind == Word || t.Kind == QuotedIdent
}

// Value returns the identifier text with quotes removed.
func (t Token) Value() string {
	if t.Kind != QuotedIdent || len(t.Text) < 2 {
		return t.Text
	}
	q := t.Text[0]
	inner := t.Text[1 : len(t.Text)-1]
	return strings.ReplaceAll(inner, string([]byte{q, q}), string(q))
}

// Scan splits sql into tokens, comments included. Whitespace is dropped.
// An unterminated literal or comment runs to the end of the input.
func Scan(sql string) []Token {
	var tokens []Token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case isSpace(c):
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			tokens = append(tokens, Token{Kind: Comment, Text: sql[i:end], Start: i, End: end})
			i = end
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 4
			}
			tokens = append(tokens, Token{Kind: Comment, Text: sql[i:end], Start: i, End: end})
			i = end
		case c == '\'':
			end := scanQuoted(sql, i)
			tokens = append(tokens, Token{Kind: String, Text: sql[i:end], Start: i, End: end})
			i = end
		case c == '"' || c == '`':
			end := scanQuoted(sql, i)
			tokens = append(tokens, Token{Kind: QuotedIdent, Text: sql[i:end], Start: i, End: end})
			i = end
		case isDigit(c):
			end := i + 1
			for end < len(sql) && (isWordByte(sql[end]) || sql[end] == '.') {
				end++
			}
			tokens = append(tokens, Token{Kind: Number, Text: sql[i:end], Start: i, End: end})
			i = end
		case isWordByte(c):
			end := i + 1
			for end < len(sql) && isWordByte(sql[end]) {
				end++
			}
			tokens = append(tokens, Token{Kind: Word, Text: sql[i:end], Start: i, End: end})
			i = end
		default:
			tokens = append(tokens, Token{Kind: Punct, Text: sql[i : i+1], Start: i, End: i + 1})
			i++
		}
	}
	return tokens
}

// Code returns the tokens of sql with comments removed.
func Code(sql string) []Token {
	all := Scan(sql)
	code := all[:0]
	for _, t := range all {
		if t.Kind != Comment {
			code = append(code, t)
		}
	}
	return code
}

// scanQuoted returns the offset past the quoted run starting at sql[start].
// A doubled quote or a backslash escapes the quote character.
func scanQuoted(sql string, start int) int {
	q := sql[start]
	i := start + 1
	for i < len(sql) {
		switch sql[i] {
		case '\\':
			i += 2
			continue
		case q:
			if i+1 < len(sql) && sql[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(sql)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
