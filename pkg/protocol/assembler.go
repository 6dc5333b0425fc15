package protocol

import "github.com/robotalks/cnc.go/pkg/settings"

// LineBufferSize is the maximum line length including the terminator.
const LineBufferSize = settings.LineBufferSize

// Assembler assembles received bytes into executable lines. Whitespace
// and control characters are dropped, letters are upper-cased, comments
// in parentheses and block delete characters are removed.
type Assembler struct {
	line    [LineBufferSize]byte
	n       int
	comment bool
}

// Reset discards the partial line.
func (a *Assembler) Reset() {
	a.n, a.comment = 0, false
}

// Pending is the number of bytes in the partial line.
func (a *Assembler) Pending() int {
	return a.n
}

// Assemble consumes one byte. It returns the line with done set once a
// line terminator is received, or ErrOverflow when the line does not fit,
// in which case the partial line is discarded.
func (a *Assembler) Assemble(b byte) (line string, done bool, err error) {
	if b == '\n' || b == '\r' {
		line = string(a.line[:a.n])
		a.Reset()
		return line, true, nil
	}
	if a.comment {
		if b == ')' {
			a.comment = false
		}
		return
	}
	switch {
	case b <= ' ':
	case b == '/':
		// block delete is not supported
	case b == '(':
		a.comment = true
	case a.n >= LineBufferSize-1:
		a.Reset()
		err = ErrOverflow
	case b >= 'a' && b <= 'z':
		a.line[a.n] = b - 'a' + 'A'
		a.n++
	default:
		a.line[a.n] = b
		a.n++
	}
	return
}
