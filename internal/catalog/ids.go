package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Category labels returned by InferCatalog.
const (
	Messier   = "Messier"
	NGC       = "NGC"
	IC        = "IC"
	Sharpless = "Sharpless"
	Other     = "Other"
)

// Object type labels returned by InferObjectTypeBasic.
const (
	TypePlanet = "Planet"
	TypeStar   = "Star"
	TypeOther  = "Other"
)

type idPattern struct {
	re     *regexp.Regexp
	format string
}

// Patterns are tried in order against the upper-cased name.
var idPatterns = []idPattern{
	{re: regexp.MustCompile(`\bM\s*([0-9]{1,3})\b`), format: "M %d"},
	{re: regexp.MustCompile(`\bNGC\s*([0-9]{1,5})\b`), format: "NGC %d"},
	{re: regexp.MustCompile(`\bIC\s*([0-9]{1,5})\b`), format: "IC %d"},
	{re: regexp.MustCompile(`\bSH\s*2[-\s]*([0-9]{1,4})\b`), format: "Sh2-%d"},
}

// Named objects that are their own canonical id.
var specialNames = map[string]struct{}{
	"JUPITER":  {},
	"DENEBOLA": {},
}

var messierPrefix = regexp.MustCompile(`^M\s*\d+`)

// NormalizeID maps a free-text object name to its canonical catalog id
// ("M 31", "NGC 7000", "IC 342", "Sh2-129"). It reports false when no known
// catalog designation is found.
func NormalizeID(name string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return "", false
	}
	if _, ok := specialNames[s]; ok {
		return s, true
	}

	for _, p := range idPatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return fmt.Sprintf(p.format, n), true
	}
	return "", false
}

// InferCatalog classifies a name into a coarse catalog family by prefix.
func InferCatalog(name string) string {
	up := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case messierPrefix.MatchString(up):
		return Messier
	case strings.HasPrefix(up, "NGC"):
		return NGC
	case strings.HasPrefix(up, "IC"):
		return IC
	case strings.HasPrefix(up, "SH2"), strings.Contains(up, "SH2-"), strings.Contains(up, "SH 2"):
		return Sharpless
	default:
		return Other
	}
}

// InferObjectTypeBasic recognizes a handful of bright named bodies.
func InferObjectTypeBasic(name string) string {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "JUPITER", "SATURN", "MARS", "VENUS":
		return TypePlanet
	case "DENEBOLA":
		return TypeStar
	default:
		return TypeOther
	}
}

// IsDesignated reports whether name carries a standard catalog designation
// (Messier, NGC, IC or Sharpless) rather than just a common name.
func IsDesignated(name string) bool {
	id, ok := NormalizeID(name)
	if !ok {
		return false
	}
	_, special := specialNames[id]
	return !special
}
