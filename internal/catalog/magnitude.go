package catalog

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	leadingNumber = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	isoDate       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	dmyDate       = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{2,4})(?:\s.*)?$`)
	namedDate     = regexp.MustCompile(`^(\d{1,2})[-\s/]+([\p{L}.]+)(?:[-\s/]+\d{2,4})?$`)
	fraction      = regexp.MustCompile(`^([-+]?\d+)\s*/\s*(\d+)$`)
)

// Month abbreviations as spreadsheet tools render them in English and French.
var monthNames = map[string]int{
	"jan": 1, "janv": 1,
	"feb": 2, "fev": 2, "fév": 2, "févr": 2,
	"mar": 3, "mars": 3,
	"apr": 4, "avr": 4,
	"may": 5, "mai": 5,
	"jun": 6, "juin": 6,
	"jul": 7, "juil": 7,
	"aug": 8, "aou": 8, "aoû": 8, "août": 8,
	"sep": 9, "sept": 9,
	"oct": 10,
	"nov": 11,
	"dec": 12, "déc": 12,
}

// Spreadsheet serials for any plausible date are far above the brightest or
// faintest magnitude a catalog would list.
const minDateSerial = 1000

// ParseMagnitude reads a magnitude cell. Spreadsheet tools often turn a value
// like 8.4 into the 8th of April; such cells (ISO or day-first date strings,
// named-month dates, raw date serials) are turned back into day.month.
// Comma decimals and fraction strings are accepted.
func ParseMagnitude(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return dayMonth(atoi(m[3]), atoi(m[2]))
	}
	if m := dmyDate.FindStringSubmatch(s); m != nil {
		return dayMonth(atoi(m[1]), atoi(m[2]))
	}
	if m := namedDate.FindStringSubmatch(s); m != nil {
		if month, ok := lookupMonth(m[2]); ok {
			return dayMonth(atoi(m[1]), month)
		}
	}
	if m := fraction.FindStringSubmatch(s); m != nil {
		num, den := atoi(m[1]), atoi(m[2])
		if v, ok := dayMonth(num, den); ok {
			return v, true
		}
		if den == 0 {
			return 0, false
		}
		return float64(num) / float64(den), true
	}

	v, ok := parseFloat(strings.ReplaceAll(s, ",", "."))
	if !ok {
		return 0, false
	}
	if v >= minDateSerial {
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return 0, false
		}
		return dayMonth(t.Day(), int(t.Month()))
	}
	return v, true
}

func dayMonth(day, month int) (float64, bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, false
	}
	return parseFloat(fmt.Sprintf("%d.%d", day, month))
}

func lookupMonth(name string) (int, bool) {
	n := strings.ToLower(strings.TrimRight(name, "."))
	if m, ok := monthNames[n]; ok {
		return m, true
	}
	r := []rune(n)
	for _, size := range []int{4, 3} {
		if len(r) > size {
			if m, ok := monthNames[string(r[:size])]; ok {
				return m, true
			}
		}
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil {
		return -1
	}
	return n
}
