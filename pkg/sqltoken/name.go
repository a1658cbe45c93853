package sqltoken

import "strings"

// Name is a possibly qualified identifier: [database.]name.
type Name struct {
	Database string
	Table    string
	Start    int // byte offset of the first token
	End      int // byte offset past the last token
}

// String renders the name without quoting.
func (n Name) String() string {
	if n.Database == "" {
		return n.Table
	}
	return n.Database + "." + n.Table
}

// Qualify fills an empty Database with db.
func (n Name) Qualify(db string) Name {
	if n.Database == "" {
		n.Database = db
	}
	return n
}

// ReadName reads a [database.]name identifier starting at tokens[i].
// It returns the name and the index of the next unread token.
func ReadName(tokens []Token, i int) (Name, int, bool) {
	if i >= len(tokens) || !tokens[i].IsName() {
		return Name{}, i, false
	}
	first := tokens[i]
	if i+2 < len(tokens) && tokens[i+1].IsPunct('.') && tokens[i+2].IsName() {
		second := tokens[i+2]
		return Name{
			Database: first.Value(),
			Table:    second.Value(),
			Start:    first.Start,
			End:      second.End,
		}, i + 3, true
	}
	return Name{Table: first.Value(), Start: first.Start, End: first.End}, i + 1, true
}

// SkipKeywords advances past the keyword sequence kws when it appears at
// tokens[i]. It returns i unchanged if the sequence does not match.
func SkipKeywords(tokens []Token, i int, kws ...string) int {
	for j, kw := range kws {
		if i+j >= len(tokens) || !tokens[i+j].Is(kw) {
			return i
		}
	}
	return i + len(kws)
}

// FindKeywords returns the index of the first occurrence of the keyword
// sequence kws in tokens, or -1.
func FindKeywords(tokens []Token, kws ...string) int {
	for i := range tokens {
		if SkipKeywords(tokens, i, kws...) != i {
			return i
		}
	}
	return -1
}

// Splice replaces sql[start:end] with repl.
func Splice(sql string, start, end int, repl string) string {
	return sql[:start] + repl + sql[end:]
}

// QuoteIdent returns name unchanged when it lexes as a single word and
// backtick-quoted otherwise.
func QuoteIdent(name string) string {
	plain := name != "" && !isDigit(name[0])
	for i := 0; plain && i < len(name); i++ {
		plain = isWordByte(name[i])
	}
	if plain {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Quoted renders the name with each part passed through QuoteIdent.
func (n Name) Quoted() string {
	if n.Database == "" {
		return QuoteIdent(n.Table)
	}
	return QuoteIdent(n.Database) + "." + QuoteIdent(n.Table)
}
