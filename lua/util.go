package lua

import (
	"github.com/wc3ts/luamin/parse/lua"
)

// OpPrec is the operator precedence, higher binds tighter.
type OpPrec int

// OpPrec values.
const (
	OpExpr    OpPrec = iota // fresh context
	OpOr                    // or
	OpAnd                   // and
	OpCompare               // < > <= >= ~= ==
	OpBitOr                 // |
	OpBitXor                // ~
	OpBitAnd                // &
	OpShift                 // << >>
	OpConcat                // ..
	OpAdd                   // + -
	OpMul                   // * / // %
	OpUnary                 // not # - ~
	OpPow                   // ^
)

var binaryOpPrecMap = map[lua.Op]OpPrec{
	lua.OrOp:       OpOr,
	lua.AndOp:      OpAnd,
	lua.LtOp:       OpCompare,
	lua.GtOp:       OpCompare,
	lua.LtEqOp:     OpCompare,
	lua.GtEqOp:     OpCompare,
	lua.NotEqOp:    OpCompare,
	lua.EqOp:       OpCompare,
	lua.BitOrOp:    OpBitOr,
	lua.BitXorOp:   OpBitXor,
	lua.BitAndOp:   OpBitAnd,
	lua.ShlOp:      OpShift,
	lua.ShrOp:      OpShift,
	lua.ConcatOp:   OpConcat,
	lua.AddOp:      OpAdd,
	lua.SubOp:      OpAdd,
	lua.MulOp:      OpMul,
	lua.DivOp:      OpMul,
	lua.FloorDivOp: OpMul,
	lua.ModOp:      OpMul,
	lua.PowOp:      OpPow,
}

// isRightAssoc returns true for the right associative operators ^ and ..
func isRightAssoc(op lua.Op) bool {
	return op == lua.PowOp || op == lua.ConcatOp
}

////////////////////////////////////////////////////////////////

func isLetter(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c)
}

// endsInNumber returns true if the trailing identifier run of b starts with a digit, such as in 0xff.
func endsInNumber(b []byte) bool {
	i := len(b)
	for 0 < i && isIdentChar(b[i-1]) {
		i--
	}
	return i < len(b) && isDigit(b[i])
}

// appendJoin appends b to a and inserts sep between them when the last token of a would otherwise fuse with the first token of b.
// Statement lists are joined with ';' or '\n', everything else with a space. The caller must own a.
func appendJoin(a, b []byte, sep byte) []byte {
	if len(a) == 0 || len(b) == 0 {
		return append(a, b...)
	}

	last, first := a[len(a)-1], b[0]
	if sep != ' ' && first == '(' && (isIdentChar(last) || last == ')' || last == '"' || last == '\'' || last == '}' || last == ']') {
		// `a=b` followed by `(c or d)(e)` would otherwise become one call chain
		if sep == '\n' {
			a = append(a, '\n', ';')
		} else {
			a = append(a, sep)
		}
		return append(a, b...)
	}

	space := false
	if isLetter(last) {
		space = isIdentChar(first) || first == '.' && endsInNumber(a)
	} else if isDigit(last) {
		space = first == '.' || isIdentChar(first)
	} else if last == '-' && first == '-' || last == '[' && first == '[' {
		space = true
	} else if last == '.' {
		if 2 <= len(a) && a[len(a)-2] == '.' {
			space = first == '.' // concat followed by a number like .5
		} else {
			space = isIdentChar(first) || first == '.'
		}
	}
	if space {
		a = append(a, sep)
	}
	return append(a, b...)
}
