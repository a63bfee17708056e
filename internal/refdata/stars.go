// Package refdata provides the bright-star catalog and constellation line
// figures used to draw finder charts.
package refdata

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Star is one entry of the bright-star catalog. Magnitude is NaN when the
// catalog has no value.
type Star struct {
	HIP       int
	Name      string
	RA        float64 // degrees
	Dec       float64 // degrees
	Magnitude float64
}

// Catalog is a star list indexed by Hipparcos number.
type Catalog struct {
	Stars []Star
	byHIP map[int]int
}

// NewCatalog indexes stars by HIP number.
func NewCatalog(stars []Star) *Catalog {
	c := &Catalog{Stars: stars, byHIP: make(map[int]int, len(stars))}
	for i, s := range stars {
		if s.HIP > 0 {
			c.byHIP[s.HIP] = i
		}
	}
	return c
}

// ByHIP returns the star with the given Hipparcos number.
func (c *Catalog) ByHIP(hip int) (Star, bool) {
	if c == nil {
		return Star{}, false
	}
	i, ok := c.byHIP[hip]
	if !ok {
		return Star{}, false
	}
	return c.Stars[i], true
}

// ReadHYGFile parses a HYG database CSV, optionally gzip-compressed.
func ReadHYGFile(path string, maxMag float64) ([]Star, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open star catalog: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ParseHYG(r, maxMag)
}

// ParseHYG reads HYG CSV rows. RA is given in hours and converted to degrees.
// Stars fainter than maxMag are dropped; stars with no magnitude are kept so
// that constellation endpoints still resolve. A non-positive maxMag keeps all.
func ParseHYG(r io.Reader, maxMag float64) ([]Star, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read star catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.Trim(strings.TrimSpace(h), "\""))] = i
	}
	for _, required := range []string{"ra", "dec", "mag"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("star catalog has no %q column", required)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var stars []Star
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		name := get(rec, "proper")
		if name == "Sol" {
			continue
		}
		raHours, err1 := strconv.ParseFloat(get(rec, "ra"), 64)
		dec, err2 := strconv.ParseFloat(get(rec, "dec"), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		mag, err := strconv.ParseFloat(get(rec, "mag"), 64)
		if err != nil {
			mag = math.NaN()
		}
		if maxMag > 0 && !math.IsNaN(mag) && mag > maxMag {
			continue
		}
		hip, _ := strconv.Atoi(get(rec, "hip"))

		stars = append(stars, Star{
			HIP:       hip,
			Name:      name,
			RA:        math.Mod(raHours*15, 360),
			Dec:       dec,
			Magnitude: mag,
		})
	}
	return stars, nil
}
