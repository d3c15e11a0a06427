// Package pyast implements a lexer, indentation-aware tokenizer, and
// recursive-descent parser for the restricted Python-like grammar that user
// strategy code is written in. It is hand-rolled: no dependency in this
// module's corpus parses Python, and Go's own go/parser parses Go, not
// Python, so there is no stdlib or third-party shortcut here.
//
// The grammar covers exactly the constructs spec.md's allow-list names:
// class/function definitions, control flow (if/elif/else, for, while,
// match/case over literal, capture, wildcard, and `|`-or patterns),
// arithmetic and comparison operators, boolean operators, list/dict/tuple
// literals, comprehensions, attribute and subscript access, calls, a ternary
// expression, and import statements. Anything outside that grammar is a
// syntax error, which is exactly the posture the static analyzer needs.
package pyast

import "fmt"

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNewline
	TokIndent
	TokDedent
	TokName
	TokNumber
	TokString
	TokOp
	TokKeyword
)

// Token is one lexical unit, tagged with its source line for diagnostics.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%d", t.Kind, t.Value, t.Line)
}

// keywords is the fixed set of reserved words in the restricted grammar.
var keywords = map[string]bool{
	"def": true, "class": true, "return": true, "if": true, "elif": true,
	"else": true, "for": true, "while": true, "in": true, "not": true,
	"and": true, "or": true, "import": true, "from": true, "as": true,
	"pass": true, "break": true, "continue": true, "True": true,
	"False": true, "None": true, "lambda": true, "match": true,
	"case": true, "is": true, "raise": true, "with": true, "yield": true,
	"global": true, "nonlocal": true, "del": true, "assert": true,
	"try": true, "except": true, "finally": true,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	return keywords[s]
}
