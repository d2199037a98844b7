package minify

import (
	"bytes"
)

var zeroBytes = []byte("0")

// Number minifies a decimal number literal by removing superfluous leading and trailing zeros.
// Hexadecimal literals are returned as is, and the exponent is kept verbatim.
// A fractional part that becomes empty keeps a single zero so that floats stay floats, unless an exponent follows.
// The input is never modified; the result may share its underlying array.
func Number(num []byte) []byte {
	if len(num) == 0 || 1 < len(num) && num[0] == '0' && (num[1] == 'x' || num[1] == 'X') {
		return num
	}

	mant, exp := num, []byte(nil)
	if i := bytes.IndexAny(num, "eE"); i != -1 {
		mant, exp = num[:i], num[i:]
	}

	dot := bytes.IndexByte(mant, '.')
	intEnd := len(mant)
	if dot != -1 {
		intEnd = dot
	}

	// trim 0 left, keep one digit before the dot
	start := 0
	for start < intEnd-1 && mant[start] == '0' {
		start++
	}

	// trim 0 right
	end := len(mant)
	if dot != -1 {
		for dot+1 < end && mant[end-1] == '0' {
			end--
		}
		if end == dot+1 {
			if exp != nil {
				end = dot // remove .
			} else if dot+1 < len(mant) {
				end = dot + 2 // keep .0
			}
		}
	}

	if exp == nil || end == len(mant) {
		if exp == nil {
			num = mant[start:end]
		} else {
			num = num[start:]
		}
		if len(num) == 0 || num[0] == 'e' || num[0] == 'E' {
			return append(append([]byte{}, zeroBytes...), num...)
		}
		return num
	}

	out := make([]byte, 0, end-start+len(exp)+1)
	out = append(out, mant[start:end]...)
	if len(out) == 0 {
		out = append(out, '0')
	}
	return append(out, exp...)
}
