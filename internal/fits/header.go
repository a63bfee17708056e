// Package fits reads the primary header of FITS files. Pixel data is never
// decoded; the gallery only needs observation metadata and WCS keywords.
package fits

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	cardSize  = 80
	blockSize = 2880
	// Headers longer than this are treated as corrupt.
	maxHeaderBlocks = 200
)

// ErrNotFITS is returned when the first card is not SIMPLE.
var ErrNotFITS = errors.New("not a FITS file")

// Header holds the keyword values of a primary header. String values are
// unquoted; other values are kept as written.
type Header map[string]string

// ReadHeader parses the primary header of the file at path. Gzip-compressed
// files (.gz) are decompressed on the fly.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS file: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	h, err := ParseHeader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return h, nil
}

// ParseHeader reads 80-byte cards until END.
func ParseHeader(r io.Reader) (Header, error) {
	h := make(Header)
	card := make([]byte, cardSize)

	for i := 0; i < maxHeaderBlocks*blockSize/cardSize; i++ {
		if _, err := io.ReadFull(r, card); err != nil {
			if i == 0 {
				return nil, ErrNotFITS
			}
			// a truncated header-only file still yields what was read
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return h, nil
			}
			return nil, err
		}

		key := strings.TrimSpace(string(card[:8]))
		if i == 0 && key != "SIMPLE" {
			return nil, ErrNotFITS
		}
		if key == "END" {
			return h, nil
		}
		if key == "" || key == "COMMENT" || key == "HISTORY" {
			continue
		}
		if string(card[8:10]) != "= " {
			continue
		}
		if _, seen := h[key]; !seen {
			h[key] = parseValue(string(card[10:]))
		}
	}
	return nil, fmt.Errorf("header has no END card within %d blocks", maxHeaderBlocks)
}

func parseValue(raw string) string {
	s := strings.TrimLeft(raw, " ")
	if strings.HasPrefix(s, "'") {
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i++
					continue
				}
				break
			}
			b.WriteByte(s[i])
		}
		return strings.TrimRight(b.String(), " ")
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Get returns the trimmed value of key, reporting false when absent or
// blank.
func (h Header) Get(key string) (string, bool) {
	v, ok := h[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Float parses a numeric keyword. Fortran D exponents are accepted.
func (h Header) Float(key string) (float64, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(strings.ToUpper(v), "D", "E", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FirstFloat returns the first of keys holding a numeric value.
func (h Header) FirstFloat(keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := h.Float(k); ok {
			return v, true
		}
	}
	return 0, false
}

// Center returns the WCS reference point (CRVAL1, CRVAL2) in degrees.
func (h Header) Center() (ra, dec float64, ok bool) {
	ra, okRA := h.Float("CRVAL1")
	dec, okDec := h.Float("CRVAL2")
	return ra, dec, okRA && okDec
}
