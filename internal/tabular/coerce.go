package tabular

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Kind is the declared type of a canonical field.
type Kind int

const (
	KindText Kind = iota
	KindCurrency
	KindDate
	KindInteger
)

func (k Kind) String() string {
	switch k {
	case KindCurrency:
		return "currency"
	case KindDate:
		return "date"
	case KindInteger:
		return "integer"
	default:
		return "text"
	}
}

var currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "", "\t", "", "\u00a0", "")

// ParseCurrency parses amounts such as "$13,644,684.70". Empty, "-" and
// "$-" are zero. ok is false only for text that could not be parsed.
func ParseCurrency(raw string) (value float64, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}
	s = currencyStripper.Replace(s)
	if s == "" || s == "-" {
		return 0, true
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

var (
	usDatePrefix  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
)

// ParseDate returns YYYY-MM-DD for "M/D/YYYY ..." (trailing text is
// discarded) or a "YYYY-MM-DD..." prefix. Anything else gives "".
func ParseDate(raw string) (value string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	if m := usDatePrefix.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("1/2/2006", m[1]+"/"+m[2]+"/"+m[3])
		if err != nil {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	if m := isoDatePrefix.FindString(s); m != "" {
		return m, true
	}
	return "", false
}

// ParseSerialDate converts a spreadsheet serial day number.
func ParseSerialDate(raw string) (string, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

const int64Bound = 1 << 63

// ParseInteger parses a count, truncating toward zero. Empty is zero and
// values outside the int64 range are unparseable.
func ParseInteger(raw string) (value int64, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < -int64Bound || t >= int64Bound {
		return 0, false
	}
	return int64(t), true
}

// Coerce converts raw to the Go value for kind. ok is false when raw was
// not empty and had to be replaced by the kind's default.
func Coerce(raw string, kind Kind, opts Options) (interface{}, bool) {
	switch kind {
	case KindCurrency:
		return ParseCurrency(raw)
	case KindDate:
		if v, ok := ParseDate(raw); ok {
			return v, true
		}
		if opts.SerialDates {
			if v, ok := ParseSerialDate(raw); ok {
				return v, true
			}
		}
		return "", false
	case KindInteger:
		return ParseInteger(raw)
	default:
		return strings.TrimSpace(raw), true
	}
}
