// Package export writes scrape results as CSV, XLSX or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bbb-scraper/internal/model"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Columns is the tabular header shared by CSV and XLSX output.
var Columns = []string{"name", "phone", "principal_contact", "url", "street_address", "accreditation_status"}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", s)
	}
}

// Write encodes result in the given format.
func Write(w io.Writer, format Format, result *model.ScrapeResult) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, result.Businesses)
	case FormatXLSX:
		return WriteXLSX(w, result.Businesses)
	case FormatJSON:
		return WriteJSON(w, result)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

// row flattens a business into Columns order. Absent values are empty cells.
func row(b *model.Business) []string {
	return []string{
		b.Name,
		model.Str(b.Phone),
		model.Str(b.PrincipalContact),
		b.URL,
		model.Str(b.StreetAddress),
		strconv.FormatBool(b.Accredited),
	}
}

// WriteCSV writes a header row followed by one row per business.
func WriteCSV(w io.Writer, businesses []model.Business) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for i := range businesses {
		if err := cw.Write(row(&businesses[i])); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// WriteXLSX writes a single "Businesses" sheet with the CSV layout.
func WriteXLSX(w io.Writer, businesses []model.Business) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Businesses")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, Columns)
	for i := range businesses {
		addRow(sheet, row(&businesses[i]))
	}
	return eris.Wrap(f.Write(w), "export: write XLSX")
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	r := sheet.AddRow()
	for _, v := range cells {
		r.AddCell().SetString(v)
	}
}

// WriteJSON writes the full result, indented.
func WriteJSON(w io.Writer, result *model.ScrapeResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(result), "export: encode JSON")
}
