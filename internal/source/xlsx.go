package source

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrSheetNotFound is returned when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// XLSXToCSV converts one worksheet to comma-separated text so it can go
// through the same reader as any CSV export. Shared strings and inline strings
// are resolved; fully empty rows are dropped and every row is padded to the
// widest row. sheetIndex is 1-based and used only when sheetName is empty.
func XLSXToCSV(data []byte, sheetName string, sheetIndex int) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	sheets := parseWorkbook(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	target, err := resolveSheet(sheets, rels, sheetName, sheetIndex)
	if err != nil {
		return "", err
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return "", fmt.Errorf("%w: %s", ErrSheetNotFound, target)
	}

	var rows [][]string
	width := 0
	rr := newSheetRowReader(sheetXML, shared)
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if emptyRow(row) {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

func resolveSheet(sheets []wbSheet, rels map[string]string, name string, index int) (string, error) {
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		names := make([]string, len(sheets))
		for i, s := range sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	// Prefer workbook order, then sheetId, then the conventional part name.
	if index <= len(sheets) {
		if rel, ok := rels[sheets[index-1].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	for _, s := range sheets {
		if s.SheetID == index {
			if rel, ok := rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), nil
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries in workbook order.
func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships maps r:id to target part.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows from a worksheet part. Cells are placed by
// their reference so gaps become empty strings.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	cur    []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	inRow := false
	next := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				r.cur = nil
				next = 0
			}
			if inRow && se.Name.Local == "c" {
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := next
				if ref != "" {
					if c := colIndexFromRef(ref); c >= 0 {
						col = c
					}
				}
				next = col + 1
				val := r.readCellValue(typ)
				if len(r.cur) <= col {
					grown := make([]string, col+1)
					copy(grown, r.cur)
					r.cur = grown
				}
				r.cur[col] = val
			}
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return r.cur, true
			}
		}
	}
}

func (r *sheetRowReader) readCellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val += sb.String()
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			if typ == "s" {
				idx := atoiSafe(val)
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx]
				}
				return ""
			}
			return val
		}
	}
}

// colIndexFromRef maps "C12" to 2.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath turns a relationship target into a zip entry name.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
