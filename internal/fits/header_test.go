package fits

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildHeader renders cards into padded FITS header blocks.
func buildHeader(cards ...string) []byte {
	var buf bytes.Buffer
	for _, c := range append(cards, "END") {
		buf.WriteString(fmt.Sprintf("%-80s", c))
	}
	for buf.Len()%blockSize != 0 {
		buf.WriteByte(' ')
	}
	return buf.Bytes()
}

func seestarHeader() []byte {
	return buildHeader(
		"SIMPLE  =                    T / conforms to FITS standard",
		"BITPIX  =                   16",
		"OBJECT  = 'M 31    '           / target",
		"DATE-OBS= '2024-10-05T22:41:13.512'",
		"EXPTIME =               1200.0",
		"FILTER  = 'LP      '",
		"TELESCOP= 'Seestar S50'",
		"INSTRUME= 'IMX462  '",
		"RA      =     10.6847083333333",
		"DEC     =      41.268750000000",
		"FOCALLEN=                250.0",
		"XPIXSZ  =                 2.9 / microns",
		"COMMENT this is ignored",
		"NOTE    = 'it''s quoted'",
	)
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(bytes.NewReader(seestarHeader()))
	require.NoError(t, err)

	obj, ok := h.Get("OBJECT")
	require.True(t, ok)
	assert.Equal(t, "M 31", obj)

	note, _ := h.Get("NOTE")
	assert.Equal(t, "it's quoted", note)

	exp, ok := h.Float("EXPTIME")
	require.True(t, ok)
	assert.Equal(t, 1200.0, exp)

	pix, ok := h.Float("XPIXSZ")
	require.True(t, ok)
	assert.Equal(t, 2.9, pix)

	_, ok = h.Get("COMMENT")
	assert.False(t, ok)
}

func TestParseHeader_NotFITS(t *testing.T) {
	_, err := ParseHeader(strings.NewReader(fmt.Sprintf("%-80s", "<html>")))
	assert.ErrorIs(t, err, ErrNotFITS)

	_, err = ParseHeader(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNotFITS)
}

func TestParseHeader_FortranExponent(t *testing.T) {
	h, err := ParseHeader(bytes.NewReader(buildHeader(
		"SIMPLE  =                    T",
		"CRVAL1  =   1.0684708333333D+01",
		"CRVAL2  =   4.1268750000000E+01",
	)))
	require.NoError(t, err)

	ra, dec, ok := h.Center()
	require.True(t, ok)
	assert.InDelta(t, 10.6847, ra, 1e-4)
	assert.InDelta(t, 41.26875, dec, 1e-6)
}

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Stacked_30_M 31_10.0s_IRCUT.fit")
	require.NoError(t, os.WriteFile(path, seestarHeader(), 0644))

	meta, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "M 31", meta.Object)
	assert.Equal(t, "2024-10-05T22:41:13.512", meta.DateObs)
	assert.Equal(t, "LP", meta.Filter)
	assert.Equal(t, "Seestar S50", meta.Telescope)
	assert.Equal(t, UnknownObserver, meta.Observer)
	assert.Equal(t, "10.6847083333333", meta.RA)

	scale, ok := EstimateScale(meta)
	require.True(t, ok)
	assert.InDelta(t, 2.3927, scale, 1e-4)
}

func TestExtract_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Stacked_bare.fits")
	require.NoError(t, os.WriteFile(path, buildHeader("SIMPLE  =                    T"), 0644))

	meta, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, UnknownObject, meta.Object)
	assert.Equal(t, NoFilter, meta.Filter)
	assert.Equal(t, UnknownTelescope, meta.Telescope)
	assert.Equal(t, UnknownInstrument, meta.Instrument)
	assert.Empty(t, meta.DateObs)

	_, ok := EstimateScale(meta)
	assert.False(t, ok, "no plate scale without focal length and pixel size")
}

func TestReadHeader_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Stacked_M31.fit.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(seestarHeader())
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	h, err := ReadHeader(path)
	require.NoError(t, err)
	obj, _ := h.Get("OBJECT")
	assert.Equal(t, "M 31", obj)
}

func TestFindStacked(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindStacked(dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "raw"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw", "Stacked_12_M 51.fits"), []byte("x"), 0644))

	assert.Equal(t, filepath.Join(dir, "raw", "Stacked_12_M 51.fits"), FindStacked(dir))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
		ok       bool
	}{
		{input: "2024-10-05T22:41:13", expected: time.Date(2024, 10, 5, 22, 41, 13, 0, time.UTC), ok: true},
		{input: "2024-10-05 22:41:13", expected: time.Date(2024, 10, 5, 22, 41, 13, 0, time.UTC), ok: true},
		{input: "2024-10-05T22:41:13.5", expected: time.Date(2024, 10, 5, 22, 41, 13, 500000000, time.UTC), ok: true},
		{input: "2024-10-05T22:41:13Z", expected: time.Date(2024, 10, 5, 22, 41, 13, 0, time.UTC), ok: true},
		{input: "2024-10-05", expected: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC), ok: true},
		{input: "05/10/2024", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, ok := ParseDate(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestParseRADec(t *testing.T) {
	ra, ok := ParseRA("10.6847")
	require.True(t, ok)
	assert.InDelta(t, 10.6847, ra, 1e-9)

	ra, ok = ParseRA("00:42:44.3")
	require.True(t, ok)
	assert.InDelta(t, 10.6846, ra, 1e-3)

	ra, ok = ParseRA("13h29m52.7s")
	require.True(t, ok)
	assert.InDelta(t, 202.4696, ra, 1e-3)

	dec, ok := ParseDec("+41:16:09")
	require.True(t, ok)
	assert.InDelta(t, 41.2692, dec, 1e-3)

	dec, ok = ParseDec("-00 30 00")
	require.True(t, ok)
	assert.InDelta(t, -0.5, dec, 1e-9)

	_, ok = ParseDec("95.0")
	assert.False(t, ok)
	_, ok = ParseRA("")
	assert.False(t, ok)
	_, ok = ParseRA("abc")
	assert.False(t, ok)
}
