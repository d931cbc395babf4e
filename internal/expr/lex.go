package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent  tokenKind = iota // field path or keyword
	tokCmp                     // ==, !=, >=, <=, >, <
	tokString                  // "…" or '…'
	tokNumber
	tokBool
	tokNull
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	ch := l.src[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case ch == '=' || ch == '!' || ch == '<' || ch == '>':
		return l.comparator()
	case ch == '"' || ch == '\'':
		return l.quoted(ch)
	case isDigit(ch) || (ch == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number(), nil
	case unicode.IsLetter(rune(ch)) || ch == '_':
		return l.ident(), nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", ch, start)
}

func (l *lexer) comparator() (token, error) {
	start := l.pos
	if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
		l.pos += 2
		return token{kind: tokCmp, text: l.src[start:l.pos], pos: start}, nil
	}
	ch := l.src[l.pos]
	if ch == '=' || ch == '!' {
		return token{}, fmt.Errorf("incomplete operator %q at position %d", ch, start)
	}
	l.pos++
	return token{kind: tokCmp, text: string(ch), pos: start}, nil
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	var b strings.Builder
	for l.pos++; l.pos < len(l.src); l.pos++ {
		ch := l.src[l.pos]
		if ch == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			b.WriteByte(l.src[l.pos])
			continue
		}
		if ch == quote {
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		b.WriteByte(ch)
	}
	return token{}, fmt.Errorf("unterminated string starting at position %d", start)
}

func (l *lexer) number() token {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		l.pos++
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) ident() token {
	start := l.pos
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if !unicode.IsLetter(rune(ch)) && !isDigit(ch) && ch != '_' && ch != '.' {
			break
		}
		l.pos++
	}
	word := l.src[start:l.pos]
	switch strings.ToLower(word) {
	case "true", "false":
		return token{kind: tokBool, text: strings.ToLower(word), pos: start}
	case "null", "nil":
		return token{kind: tokNull, text: word, pos: start}
	}
	return token{kind: tokIdent, text: word, pos: start}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
