package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "fabdrop/pkg/errors"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type candidate struct {
	name string
	enc  encoding.Encoding
}

// candidates are tried in order by Decode.
var candidates = []candidate{
	{"utf-8-sig", unicode.UTF8BOM},
	{"utf-8", unicode.UTF8},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// Encodings lists the encodings Decode tries, in order.
func Encodings() []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// Decode converts data to UTF-8 text using the first encoding that decodes
// it cleanly and returns that encoding's name.
func Decode(data []byte) (string, string, error) {
	for _, c := range candidates {
		switch c.name {
		case "utf-8-sig":
			if !bytes.HasPrefix(data, utf8BOM) || !utf8.Valid(data) {
				continue
			}
		case "utf-8":
			if !utf8.Valid(data) {
				continue
			}
		}
		out, err := c.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if c.name != "utf-8" && c.name != "utf-8-sig" && bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), c.name, nil
	}
	return "", "", apperrors.Malformed("could not decode input with any known encoding", -1)
}

// ReadCSV reads and decodes a CSV file into rows.
func ReadCSV(path string) ([][]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", apperrors.NotFound("file", path)
		}
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read "+path)
	}
	return ParseCSV(data)
}

// ParseCSV decodes data and splits it into rows. Quoted cells may span
// lines.
func ParseCSV(data []byte) ([][]string, string, error) {
	text, enc, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, enc, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "invalid CSV")
	}
	return rows, enc, nil
}

// Sheet is one worksheet's cell text.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook holds the sheets of a spreadsheet in workbook order.
type Workbook struct {
	Path   string
	Sheets []Sheet
}

// Sheet returns the named sheet.
func (w *Workbook) Sheet(name string) (Sheet, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// OpenWorkbook reads every sheet of an .xlsx file. Cells hold raw values,
// so dates arrive as serial numbers; read them with Options.SerialDates.
func OpenWorkbook(path string) (*Workbook, error) {
	head := make([]byte, 8)
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("file", path)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to open "+path)
	}
	n, _ := fh.Read(head)
	fh.Close()
	if bytes.HasPrefix(head[:n], oleMagic) {
		return nil, apperrors.Malformed("legacy .xls workbooks are not supported", 0).
			WithContext("file", path).
			WithSuggestions("Save the workbook as .xlsx and retry")
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "failed to open workbook "+path)
	}
	defer f.Close()

	wb := &Workbook{Path: path}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed,
				fmt.Sprintf("failed to read sheet '%s'", name))
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// OutputSheet is a sheet to write. Cells may be strings or numbers.
type OutputSheet struct {
	Name string
	Rows [][]interface{}
}

// WriteWorkbook saves sheets to path as an .xlsx file. Column widths fit
// the longest value, capped at 40.
func WriteWorkbook(path string, sheets []OutputSheet) error {
	if len(sheets) == 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "no sheets to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to name sheet")
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to add sheet "+sheet.Name)
		}

		widths := map[int]int{}
		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "bad cell reference")
			}
			values := row
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to write row")
			}
			for c, v := range row {
				if l := len(fmt.Sprint(v)); l > widths[c] {
					widths[c] = l
				}
			}
		}
		for c, w := range widths {
			col, err := excelize.ColumnNumberToName(c + 1)
			if err != nil {
				continue
			}
			width := float64(w + 4)
			if width > 40 {
				width = 40
			}
			_ = f.SetColWidth(sheet.Name, col, col, width)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to save workbook "+path)
	}
	return nil
}
