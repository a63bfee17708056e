package refdata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Constellation is a stick figure: each segment joins two Hipparcos stars.
type Constellation struct {
	Abbr     string
	Segments [][2]int
}

// ReadFabFile parses a Stellarium constellationship.fab file.
func ReadFabFile(path string) ([]Constellation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open constellation lines: %w", err)
	}
	defer f.Close()
	return ParseFab(f)
}

// ParseFab reads lines of the form "abbr n hip1 hip2 ... hip2n". Malformed
// lines are skipped.
func ParseFab(r io.Reader) ([]Constellation, error) {
	var out []Constellation
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 || len(fields) < 2+2*n {
			continue
		}

		c := Constellation{Abbr: fields[0], Segments: make([][2]int, 0, n)}
		for i := 0; i < n; i++ {
			a, errA := strconv.Atoi(fields[2+2*i])
			b, errB := strconv.Atoi(fields[3+2*i])
			if errA != nil || errB != nil {
				continue
			}
			c.Segments = append(c.Segments, [2]int{a, b})
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read constellation lines: %w", err)
	}
	return out, nil
}
