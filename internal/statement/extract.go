package statement

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RowStatus classifies how a row's values lined up with the header periods.
type RowStatus int

const (
	// RowClean has exactly one value per period.
	RowClean RowStatus = iota
	// RowTruncated had more values than periods; the extra values were dropped.
	RowTruncated
	// RowShort had fewer values than periods; the trailing periods are missing.
	RowShort
)

func (s RowStatus) String() string {
	switch s {
	case RowClean:
		return "clean"
	case RowTruncated:
		return "truncated"
	case RowShort:
		return "short"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s RowStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *RowStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "clean":
		*s = RowClean
	case "truncated":
		*s = RowTruncated
	case "short":
		*s = RowShort
	default:
		return fmt.Errorf("unknown row status %q", b)
	}
	return nil
}

// RowReport describes one data row as it was read from the page.
type RowReport struct {
	Label      string    `json:"label"`
	Status     RowStatus `json:"status"`
	Cells      int       `json:"cells"`       // value cells in the row
	ZeroFilled int       `json:"zero_filled"` // cells that were not numeric
}

// Report is the result of reading a section together with per-row diagnostics.
// Extraction never fails; the report is how data-quality problems surface.
type Report struct {
	Section     string      `json:"section"`
	Found       bool        `json:"found"` // section and a usable table were present
	Periods     []string    `json:"periods"`
	Rows        []RowReport `json:"rows,omitempty"`
	Skipped     int         `json:"skipped"`               // rows with fewer than 2 cells
	Overwritten []string    `json:"overwritten,omitempty"` // labels seen more than once
	Table       Table       `json:"-"`
}

// Clean reports whether every row lined up with the header and parsed fully.
func (r Report) Clean() bool {
	if r.Skipped > 0 || len(r.Overwritten) > 0 {
		return false
	}
	for _, row := range r.Rows {
		if row.Status != RowClean || row.ZeroFilled > 0 {
			return false
		}
	}
	return true
}

// Extract reads the statement table of the section with the given id.
//
// A missing section, a missing table, a table without data rows or a header
// without period columns all yield an empty Table. Cells that do not parse as
// numbers read as 0. When a label repeats, the last row wins.
func Extract(doc *goquery.Document, sectionID string) Table {
	return ExtractReport(doc, sectionID).Table
}

// ExtractReport is Extract with per-row diagnostics.
func ExtractReport(doc *goquery.Document, sectionID string) Report {
	rep := Report{Section: sectionID, Table: Table{}}
	if doc == nil {
		return rep
	}

	section := doc.Find("section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		return ok && id == sectionID
	}).First()
	if section.Length() == 0 {
		return rep
	}

	table := section.Find("table").First()
	if table.Length() == 0 {
		return rep
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return rep
	}

	header := rows.First().Find("th")
	if header.Length() < 2 {
		return rep
	}

	periods := make([]string, 0, header.Length()-1)
	header.Each(func(i int, th *goquery.Selection) {
		if i > 0 {
			periods = append(periods, strings.TrimSpace(th.Text()))
		}
	})
	rep.Found = true
	rep.Periods = periods

	rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td, th")
		if cells.Length() < 2 {
			rep.Skipped++
			return
		}

		label := strings.TrimSpace(cells.First().Text())
		row := RowReport{Label: label, Cells: cells.Length() - 1}

		values := make([]float64, 0, row.Cells)
		cells.Slice(1, cells.Length()).Each(func(_ int, td *goquery.Selection) {
			v, ok := ParseNumber(td.Text())
			if !ok {
				row.ZeroFilled++
			}
			values = append(values, v)
		})

		switch {
		case len(values) > len(periods):
			row.Status = RowTruncated
		case len(values) < len(periods):
			row.Status = RowShort
		}

		if _, dup := rep.Table[label]; dup {
			rep.Overwritten = append(rep.Overwritten, label)
		}
		rep.Table[label] = NewSeries(periods, values)
		rep.Rows = append(rep.Rows, row)
	})

	return rep
}

// ParseNumber parses a cell as a number after stripping surrounding
// whitespace and thousands separators. It returns 0 and false when the cell
// is not a finite decimal number; hex literals, NaN and infinities count as
// non-numeric.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	digits := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
