package ical

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// Param is one NAME=VALUE(,VALUE)* parameter qualifying a property (§3).
type Param struct {
	Name   string
	Values []string
}

// ContentLine is one logical content line after unfolding, split into its
// name, ordered parameters, and raw (still-escaped) value (§3, §4.1).
type ContentLine struct {
	Name   string
	Params []Param
	Value  string
}

func (cl *ContentLine) param(name string) ([]string, bool) {
	for _, p := range cl.Params {
		if strings.EqualFold(p.Name, name) {
			return p.Values, true
		}
	}
	return nil, false
}

func (cl *ContentLine) paramFirst(name string) (string, bool) {
	vs, ok := cl.param(name)
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (cl *ContentLine) setParam(name string, values ...string) {
	for i := range cl.Params {
		if strings.EqualFold(cl.Params[i].Name, name) {
			cl.Params[i].Values = values
			return
		}
	}
	cl.Params = append(cl.Params, Param{Name: name, Values: values})
}

const bom = "﻿"

// Lexer reads RFC 5545 content lines out of a byte stream, handling CRLF/LF
// line endings, BOM stripping, and backslash-free logical-line unfolding
// (§4.1, §6). It is not safe for concurrent use (§5).
type Lexer struct {
	br        *bufio.Reader
	strippedB bool
}

// NewLexer wraps r for reading. The stream may use CRLF or LF endings and
// may optionally begin with a UTF-8 BOM.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{br: bufio.NewReader(r)}
}

// ReadLogicalLine returns the next unfolded logical line, without its line
// terminator. It returns io.EOF (with an empty string) once the stream is
// exhausted and no content line remains buffered.
func (l *Lexer) ReadLogicalLine() (string, error) {
	var out []byte
	sawAny := false
	for {
		raw, err := l.br.ReadBytes('\n')
		if len(raw) == 0 && err != nil {
			if sawAny {
				return finishLine(out), nil
			}
			return "", err
		}

		line := trimEOL(raw)
		if !sawAny {
			orphan := !l.strippedB
			line = l.stripBOM(line)
			if orphan && len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
				return "", fmt.Errorf("%w: %w", ErrLex, ErrUnterminatedFold)
			}
		}
		out = append(out, line...)
		sawAny = true

		if err == io.EOF {
			return finishLine(out), nil
		}

		peek, peekErr := l.br.Peek(1)
		if peekErr != nil || len(peek) == 0 {
			return finishLine(out), nil
		}
		if peek[0] == ' ' || peek[0] == '\t' {
			_, _ = l.br.Discard(1)
			continue
		}
		return finishLine(out), nil
	}
}

func finishLine(b []byte) string {
	if b == nil {
		return ""
	}
	return string(b)
}

func trimEOL(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
		if n > 0 && b[n-1] == '\r' {
			n--
		}
	}
	return b[:n]
}

func (l *Lexer) stripBOM(line []byte) []byte {
	if l.strippedB {
		return line
	}
	l.strippedB = true
	if strings.HasPrefix(string(line), bom) {
		return line[len(bom):]
	}
	return line
}

// NextContentLine reads and tokenizes the next non-blank logical line.
func (l *Lexer) NextContentLine() (*ContentLine, error) {
	for {
		raw, err := l.ReadLogicalLine()
		if raw == "" {
			if err != nil {
				return nil, err
			}
			continue
		}
		cl, parseErr := ParseContentLine(raw)
		if parseErr != nil {
			return nil, parseErr
		}
		return cl, err
	}
}

// ParseContentLine tokenizes one already-unfolded logical line into name,
// parameters, and raw value (§4.1's grammar).
func ParseContentLine(raw string) (*ContentLine, error) {
	i := 0
	name, i, err := scanToken(raw, i)
	if err != nil {
		return nil, fmt.Errorf("%w: content line name: %v", ErrLex, err)
	}
	cl := &ContentLine{Name: strings.ToUpper(name)}
	for i < len(raw) {
		switch raw[i] {
		case ':':
			cl.Value = raw[i+1:]
			return cl, nil
		case ';':
			var p Param
			p, i, err = scanParam(raw, i+1)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter of %s: %w", ErrLex, cl.Name, err)
			}
			cl.Params = append(cl.Params, p)
		default:
			return nil, fmt.Errorf("%w: unexpected character %q in %s", ErrLex, raw[i], cl.Name)
		}
	}
	return nil, fmt.Errorf("%w: %s: missing ':' value separator", ErrLex, cl.Name)
}

func scanToken(s string, i int) (string, int, error) {
	start := i
	for i < len(s) && isTokenChar(s[i]) {
		i++
	}
	if i == start {
		return "", i, fmt.Errorf("empty token at offset %d", start)
	}
	return s[start:i], i, nil
}

func isTokenChar(c byte) bool {
	return c == '-' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func scanParam(s string, i int) (Param, int, error) {
	name, i, err := scanToken(s, i)
	if err != nil {
		return Param{}, i, fmt.Errorf("parameter name: %w", err)
	}
	if i >= len(s) || s[i] != '=' {
		return Param{}, i, fmt.Errorf("parameter %s: missing '='", name)
	}
	i++
	p := Param{Name: name}
	for {
		var v string
		v, i, err = scanParamValue(s, i)
		if err != nil {
			return Param{}, i, fmt.Errorf("parameter %s: %w", name, err)
		}
		p.Values = append(p.Values, v)
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		return p, i, nil
	}
}

func scanParamValue(s string, i int) (string, int, error) {
	if i < len(s) && s[i] == '"' {
		i++
		start := i
		for i < len(s) && s[i] != '"' {
			i++
		}
		if i >= len(s) {
			return "", i, ErrUnterminatedQuote
		}
		v := s[start:i]
		return v, i + 1, nil
	}
	start := i
	for i < len(s) && s[i] != ';' && s[i] != ':' && s[i] != ',' {
		i++
	}
	return s[start:i], i, nil
}

// --- emission / folding (§4.1 "Emission") ---

// WriteContentLine serializes name+params+value as one or more folded
// physical lines terminated with CRLF, per the 75-octet rule.
func WriteContentLine(w io.Writer, cl ContentLine) error {
	var b strings.Builder
	b.WriteString(cl.Name)
	sorted := append([]Param(nil), cl.Params...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		b.WriteByte(';')
		b.WriteString(p.Name)
		b.WriteByte('=')
		for i, v := range p.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteParamValue(v))
		}
	}
	b.WriteByte(':')
	b.WriteString(cl.Value)
	return foldAndWrite(w, b.String())
}

func quoteParamValue(v string) string {
	if strings.ContainsAny(v, ":;,") {
		return `"` + v + `"`
	}
	return v
}

const maxLineOctets = 75

func foldAndWrite(w io.Writer, line string) error {
	rem := line
	first := true
	for {
		prefix := ""
		limit := maxLineOctets
		if !first {
			prefix = " "
			limit = maxLineOctets - 1
		}
		if utf8OctetLen(rem) <= limit {
			if _, err := fmt.Fprint(w, prefix, rem, "\r\n"); err != nil {
				return err
			}
			return nil
		}
		cut := utf8TruncateTo(rem, limit)
		if _, err := fmt.Fprint(w, prefix, rem[:cut], "\r\n"); err != nil {
			return err
		}
		rem = rem[cut:]
		first = false
	}
}

func utf8OctetLen(s string) int { return len(s) }

// utf8TruncateTo returns the largest byte offset <= limit that does not
// split a UTF-8 rune, so a fold boundary never lands mid-character.
func utf8TruncateTo(s string, limit int) int {
	if len(s) <= limit {
		return len(s)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return cut
}
