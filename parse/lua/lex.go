package lua

import (
	"bytes"
	"io"
	"strconv"

	"github.com/tdewolff/parse/v2"
)

// TokenType determines the type of token, eg. a name or a punctuator.
type TokenType uint32

// TokenType values.
const (
	ErrorToken TokenType = iota // extra token when errors occur
	NameToken
	KeywordToken
	NumericToken
	StringToken
	PunctuatorToken
)

func (tt TokenType) String() string {
	switch tt {
	case ErrorToken:
		return "Error"
	case NameToken:
		return "Name"
	case KeywordToken:
		return "Keyword"
	case NumericToken:
		return "Numeric"
	case StringToken:
		return "String"
	case PunctuatorToken:
		return "Punctuator"
	}
	return "Invalid(" + strconv.Itoa(int(tt)) + ")"
}

////////////////////////////////////////////////////////////////

// Lexer is the state for the lexer of Lua 5.3 source. Whitespace and comments are skipped.
type Lexer struct {
	r     *parse.Input
	err   error
	start int
	value []byte
}

// NewLexer returns a new Lexer for a given io.Reader. A first line starting with '#' is skipped.
func NewLexer(r *parse.Input) *Lexer {
	l := &Lexer{r: r}
	if r.Peek(0) == '#' {
		l.skipLine()
		r.Skip()
	}
	return l
}

// Err returns the error encountered during lexing, this is often io.EOF but also other errors can be returned.
func (l *Lexer) Err() error {
	if l.err != nil {
		return l.err
	}
	return l.r.Err()
}

// Offset returns the byte offset of the last returned token.
func (l *Lexer) Offset() int {
	return l.start
}

// Value returns the decoded contents of the last returned string token.
func (l *Lexer) Value() []byte {
	return l.value
}

// Next returns the next Token. It returns ErrorToken when an error was encountered. Using Err() one can retrieve the error message.
func (l *Lexer) Next() (TokenType, []byte) {
	if l.err != nil || !l.skip() {
		return ErrorToken, nil
	}

	l.start = l.r.Offset()
	c := l.r.Peek(0)
	switch {
	case c == 0 && l.r.Err() != nil:
		return ErrorToken, nil
	case isNameStart(c):
		l.r.Move(1)
		for isNameChar(l.r.Peek(0)) {
			l.r.Move(1)
		}
		name := l.r.Shift()
		if keywords[string(name)] {
			return KeywordToken, name
		}
		return NameToken, name
	case isDecimal(c) || c == '.' && isDecimal(l.r.Peek(1)):
		if !l.consumeNumber() {
			return ErrorToken, nil
		}
		return NumericToken, l.r.Shift()
	case c == '"' || c == '\'':
		if !l.consumeShortString(c) {
			return ErrorToken, nil
		}
		return StringToken, l.r.Shift()
	case c == '[':
		if level := l.longBracketLevel(); level != -1 {
			l.value = []byte{}
			if !l.consumeLongBracket(level, true) {
				return ErrorToken, l.fail(l.start, "unfinished long string")
			}
			return StringToken, l.r.Shift()
		} else if l.r.Peek(1) == '=' {
			return ErrorToken, l.fail(l.start, "invalid long string delimiter")
		}
		l.r.Move(1)
	case c == '.':
		if l.r.Peek(1) == '.' {
			if l.r.Peek(2) == '.' {
				l.r.Move(3)
			} else {
				l.r.Move(2)
			}
		} else {
			l.r.Move(1)
		}
	case c == ':' || c == '/' || c == '=':
		// ::, //, ==
		if l.r.Peek(1) == c {
			l.r.Move(2)
		} else {
			l.r.Move(1)
		}
	case c == '<' || c == '>':
		// <<, <=, >>, >=
		if next := l.r.Peek(1); next == c || next == '=' {
			l.r.Move(2)
		} else {
			l.r.Move(1)
		}
	case c == '~':
		if l.r.Peek(1) == '=' {
			l.r.Move(2)
		} else {
			l.r.Move(1)
		}
	case bytes.IndexByte([]byte("+-*%^#&|(){}];,"), c) != -1:
		l.r.Move(1)
	default:
		return ErrorToken, l.fail(l.start, "unexpected symbol near '%c'", c)
	}
	return PunctuatorToken, l.r.Shift()
}

func (l *Lexer) fail(offset int, format string, a ...interface{}) []byte {
	if l.err == nil {
		l.err = parse.NewError(bytes.NewReader(l.r.Bytes()), offset, format, a...)
	}
	return nil
}

////////////////////////////////////////////////////////////////

func isNameStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_'
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDecimal(c)
}

func isDecimal(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return isDecimal(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func hexValue(c byte) uint32 {
	if c <= '9' {
		return uint32(c - '0')
	}
	return uint32(c|0x20-'a') + 10
}

func isNewline(c byte) bool {
	return c == '\n' || c == '\r'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// skip moves past whitespace and comments, it returns false on an unfinished long comment.
func (l *Lexer) skip() bool {
	for {
		c := l.r.Peek(0)
		if isSpace(c) {
			l.r.Move(1)
		} else if c == '-' && l.r.Peek(1) == '-' {
			start := l.r.Offset()
			l.r.Move(2)
			if level := l.longBracketLevel(); level != -1 {
				if !l.consumeLongBracket(level, false) {
					l.fail(start, "unfinished long comment")
					return false
				}
			} else {
				l.skipLine()
			}
		} else {
			l.r.Skip()
			return true
		}
	}
}

func (l *Lexer) skipLine() {
	for {
		if c := l.r.Peek(0); isNewline(c) || c == 0 && l.r.Err() != nil {
			return
		}
		l.r.Move(1)
	}
}

// skipNewline moves past a \n, \r, \r\n or \n\r sequence.
func (l *Lexer) skipNewline() {
	c := l.r.Peek(0)
	l.r.Move(1)
	if next := l.r.Peek(0); isNewline(next) && next != c {
		l.r.Move(1)
	}
}

// longBracketLevel returns the number of equal signs of a long bracket [==[ at the current position, or -1.
func (l *Lexer) longBracketLevel() int {
	if l.r.Peek(0) != '[' {
		return -1
	}
	n := 1
	for l.r.Peek(n) == '=' {
		n++
	}
	if l.r.Peek(n) != '[' {
		return -1
	}
	return n - 1
}

// consumeLongBracket moves past a long bracket of the given level. Newlines are stored as \n and a leading newline is dropped.
func (l *Lexer) consumeLongBracket(level int, save bool) bool {
	l.r.Move(level + 2)
	if isNewline(l.r.Peek(0)) {
		l.skipNewline()
	}
	for {
		c := l.r.Peek(0)
		if c == 0 && l.r.Err() != nil {
			return false
		} else if c == ']' {
			n := 1
			for l.r.Peek(n) == '=' {
				n++
			}
			if n-1 == level && l.r.Peek(n) == ']' {
				l.r.Move(n + 1)
				return true
			}
		} else if isNewline(c) {
			l.skipNewline()
			if save {
				l.value = append(l.value, '\n')
			}
			continue
		}
		if save {
			l.value = append(l.value, c)
		}
		l.r.Move(1)
	}
}

func (l *Lexer) consumeShortString(delim byte) bool {
	l.value = []byte{}
	l.r.Move(1)
	for {
		c := l.r.Peek(0)
		if c == delim {
			l.r.Move(1)
			return true
		} else if isNewline(c) || c == 0 && l.r.Err() != nil {
			l.fail(l.start, "unfinished string")
			return false
		} else if c == '\\' {
			if !l.consumeEscape() {
				return false
			}
			continue
		}
		l.value = append(l.value, c)
		l.r.Move(1)
	}
}

var escapes = map[byte]byte{
	'a': '\a', 'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t', 'v': '\v',
	'\\': '\\', '"': '"', '\'': '\'',
}

func (l *Lexer) consumeEscape() bool {
	offset := l.r.Offset()
	l.r.Move(1)
	c := l.r.Peek(0)
	if e, ok := escapes[c]; ok {
		l.value = append(l.value, e)
		l.r.Move(1)
		return true
	}

	switch {
	case isNewline(c):
		l.skipNewline()
		l.value = append(l.value, '\n')
	case c == 'z':
		l.r.Move(1)
		for isSpace(l.r.Peek(0)) {
			l.r.Move(1)
		}
	case c == 'x':
		if !isHex(l.r.Peek(1)) || !isHex(l.r.Peek(2)) {
			l.fail(offset, "hexadecimal digit expected")
			return false
		}
		l.value = append(l.value, byte(hexValue(l.r.Peek(1))<<4|hexValue(l.r.Peek(2))))
		l.r.Move(3)
	case c == 'u':
		if l.r.Peek(1) != '{' || !isHex(l.r.Peek(2)) {
			l.fail(offset, "missing '{' in \\u{xxxx}")
			return false
		}
		n, r := 2, uint32(0)
		for isHex(l.r.Peek(n)) {
			if r = r<<4 | hexValue(l.r.Peek(n)); 0x10FFFF < r {
				l.fail(offset, "UTF-8 value too large")
				return false
			}
			n++
		}
		if l.r.Peek(n) != '}' {
			l.fail(offset, "missing '}' in \\u{xxxx}")
			return false
		}
		l.value = appendUTF8(l.value, r)
		l.r.Move(n + 1)
	case isDecimal(c):
		n, r := 0, 0
		for n < 3 && isDecimal(l.r.Peek(n)) {
			r = 10*r + int(l.r.Peek(n)-'0')
			n++
		}
		if 255 < r {
			l.fail(offset, "decimal escape too large")
			return false
		}
		l.value = append(l.value, byte(r))
		l.r.Move(n)
	case c == 0 && l.r.Err() != nil:
		l.fail(l.start, "unfinished string")
		return false
	default:
		l.fail(offset, "invalid escape sequence '\\%c'", c)
		return false
	}
	return true
}

// appendUTF8 encodes any code point up to 0x10FFFF, surrogate halves included.
func appendUTF8(b []byte, r uint32) []byte {
	switch {
	case r < 0x80:
		return append(b, byte(r))
	case r < 0x800:
		return append(b, 0xC0|byte(r>>6), 0x80|byte(r)&0x3F)
	case r < 0x10000:
		return append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
	}
	return append(b, 0xF0|byte(r>>18), 0x80|byte(r>>12)&0x3F, 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
}

// consumeNumber reads a numeral the way Lua does: greedily over hex digits, dots and signed exponents, after which the numeral is validated.
func (l *Lexer) consumeNumber() bool {
	expo := byte('e')
	n := 0
	if l.r.Peek(0) == '0' && (l.r.Peek(1) == 'x' || l.r.Peek(1) == 'X') {
		expo = 'p'
		n = 2
	}
	for {
		c := l.r.Peek(n)
		if c == expo || c == expo-'a'+'A' {
			n++
			if sign := l.r.Peek(n); sign == '+' || sign == '-' {
				n++
			}
		} else if isHex(c) || c == '.' {
			n++
		} else {
			break
		}
	}
	if isNameStart(l.r.Peek(n)) {
		n++
	}
	l.r.Move(n)
	if !validNumber(l.r.Lexeme()) {
		l.fail(l.start, "malformed number near '%s'", l.r.Lexeme())
		return false
	}
	return true
}

func validNumber(b []byte) bool {
	digit, expo := isDecimal, byte('e')
	if 1 < len(b) && b[0] == '0' && (b[1] == 'x' || b[1] == 'X') {
		b = b[2:]
		digit, expo = isHex, 'p'
	}

	i, digits := 0, 0
	for i < len(b) && digit(b[i]) {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		i++
		for i < len(b) && digit(b[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(b) && (b[i] == expo || b[i] == expo-'a'+'A') {
		i++
		if i < len(b) && (b[i] == '+' || b[i] == '-') {
			i++
		}
		start := i
		for i < len(b) && isDecimal(b[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(b)
}

// lexError reports whether err is a lexing failure rather than the end of the input.
func lexError(err error) bool {
	return err != nil && err != io.EOF
}
