package parser

import "fmt"

// MalformedInputError reports delimited text that cannot be split consistently
// with its header row. Line and Column are 1-based; zero means unknown.
type MalformedInputError struct {
	Line   int
	Column int
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("malformed input: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
