package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Record is one data line keyed by header name. Header strings are kept verbatim.
type Record map[string]string

// Table is the result of reading delimited text: the header sequence in column
// order and one Record per non-empty data line.
type Table struct {
	Headers []string
	Records []Record
}

// Options tunes ReadCSV. The zero value sniffs the delimiter from the header line.
type Options struct {
	Delimiter rune
}

// DefaultOptions returns options with delimiter auto-detection enabled.
func DefaultOptions() Options { return Options{} }

// ErrUnsupported indicates a delimiter outside the supported set.
var ErrUnsupported = errors.New("unsupported delimiter")

// ParseDelimiter maps user-facing names to a delimiter rune. Empty input
// yields 0 (auto-detect).
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "tab", `\t`:
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("%w: %q (use ',' | ';' | 'tab' | '|')", ErrUnsupported, s)
}

// ReadCSV splits raw text into headers and records.
//
// The text is trimmed (a leading byte-order mark counts as whitespace) and the
// first line becomes the header. Lines holding only whitespace are skipped.
// Empty header cells are dropped; repeated header names get a numeric suffix
// (Spend, Spend_1, ...). A quote inside an unquoted field is literal text.
// Any structural problem is reported as a *MalformedInputError describing the
// first offending location.
func ReadCSV(text string, opt Options) (*Table, error) {
	text = strings.TrimFunc(text, func(r rune) bool { return unicode.IsSpace(r) || r == '\uFEFF' })
	out := &Table{Headers: []string{}, Records: []Record{}}
	if text == "" {
		return out, nil
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(text)
	}
	if err := checkQuotes(text, delim); err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	// Quoted fields were checked above; lazy mode only relaxes bare quotes.
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, malformed(err)
	}
	names := uniqueHeaders(header)
	for _, n := range names {
		if n != "" {
			out.Headers = append(out.Headers, n)
		}
	}

	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		if blankLine(fields) {
			continue
		}
		if len(fields) != len(names) {
			line, _ := r.FieldPos(0)
			col := len(names) + 1
			if len(fields) < len(names) {
				col = len(fields)
			}
			return nil, &MalformedInputError{
				Line:   line,
				Column: col,
				Err:    fmt.Errorf("%w: expected %d, found %d", csv.ErrFieldCount, len(names), len(fields)),
			}
		}
		rec := make(Record, len(out.Headers))
		for i, n := range names {
			if n == "" {
				continue
			}
			rec[n] = fields[i]
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedInputError{Line: pe.Line, Column: pe.Column, Err: pe.Err}
	}
	return &MalformedInputError{Err: err}
}

// checkQuotes finds the first quoted field that is never closed or that has
// text after its closing quote. encoding/csv in lazy mode accepts both.
func checkQuotes(text string, delim rune) error {
	line, lineStart := 1, 0
	fieldStart, inQuote := true, false
	openLine, openCol := 0, 0
	for i := 0; i < len(text); {
		c, size := utf8.DecodeRuneInString(text[i:])
		col := i - lineStart + 1
		switch {
		case inQuote && c == '"':
			next, n := utf8.DecodeRuneInString(text[i+size:])
			switch {
			case n > 0 && next == '"':
				size += n
			case n == 0 || next == delim || next == '\n' || next == '\r':
				inQuote = false
			default:
				return &MalformedInputError{Line: line, Column: col + 1, Err: csv.ErrQuote}
			}
		case inQuote:
		case fieldStart && c == '"':
			inQuote, openLine, openCol = true, line, col
			fieldStart = false
		case c == delim || c == '\n':
			fieldStart = true
		default:
			fieldStart = false
		}
		if c == '\n' {
			line++
			lineStart = i + size
		}
		i += size
	}
	if inQuote {
		return &MalformedInputError{Line: openLine, Column: openCol, Err: csv.ErrQuote}
	}
	return nil
}

func blankLine(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}

// uniqueHeaders keeps column positions; empty names stay empty so the caller
// can skip those columns.
func uniqueHeaders(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, h := range header {
		if h == "" {
			continue
		}
		name := h
		for used[name] {
			suffix[h]++
			name = h + "_" + strconv.Itoa(suffix[h])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// sniffDelimiter counts candidate separators on the header line, ignoring
// quoted sections. Comma wins ties and the no-candidate case.
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuote := false
	for _, c := range line {
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if !inQuote {
			counts[c]++
		}
	}
	best, bestN := ',', 0
	for _, c := range candidates {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}
