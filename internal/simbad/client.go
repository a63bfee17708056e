// Package simbad queries the SIMBAD astronomical database through its TAP
// synchronous endpoint.
package simbad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public SIMBAD TAP sync endpoint.
const DefaultBaseURL = "https://simbad.cds.unistra.fr/simbad/sim-tap/sync"

// Client runs ADQL queries against a TAP service.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

// Object is the basic identity row for one SIMBAD object.
type Object struct {
	MainID    string
	OType     string
	OTypeText string
}

// ConeObject is one result of a cone search. Magnitude is NaN when SIMBAD
// has no V flux for the object.
type ConeObject struct {
	MainID    string
	OType     string
	RA        float64
	Dec       float64
	Magnitude float64
}

// NewClient creates a SIMBAD client. An empty baseURL selects the public
// service; a zero timeout selects 60 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// QueryIdentifier looks up an exact identifier. It reports false with a nil
// error when SIMBAD knows no object by that name.
func (c *Client) QueryIdentifier(ctx context.Context, ident string) (Object, bool, error) {
	adql := fmt.Sprintf(`SELECT TOP 1 b.main_id, b.otype, b.otype_txt
FROM basic AS b
JOIN ident AS i ON i.oidref = b.oid
WHERE i.id = '%s'`, escape(ident))

	res, err := c.query(ctx, adql)
	if err != nil {
		return Object{}, false, err
	}
	if len(res.rows) == 0 {
		return Object{}, false, nil
	}

	row := res.rows[0]
	return Object{
		MainID:    res.str(row, "main_id"),
		OType:     res.str(row, "otype"),
		OTypeText: res.str(row, "otype_txt"),
	}, true, nil
}

// ConeSearch returns up to limit objects within radiusDeg of the given
// position, brightest first.
func (c *Client) ConeSearch(ctx context.Context, raDeg, decDeg, radiusDeg float64, limit int) ([]ConeObject, error) {
	if limit <= 0 {
		limit = 200
	}
	adql := fmt.Sprintf(`SELECT TOP %d b.main_id, b.otype, b.ra, b.dec, f.V
FROM basic AS b
LEFT OUTER JOIN allfluxes AS f ON f.oidref = b.oid
WHERE CONTAINS(POINT('ICRS', b.ra, b.dec), CIRCLE('ICRS', %.6f, %.6f, %.6f)) = 1
ORDER BY f.V ASC`, limit, raDeg, decDeg, radiusDeg)

	res, err := c.query(ctx, adql)
	if err != nil {
		return nil, err
	}

	out := make([]ConeObject, 0, len(res.rows))
	for _, row := range res.rows {
		ra, okRA := res.num(row, "ra")
		dec, okDec := res.num(row, "dec")
		if !okRA || !okDec {
			continue
		}
		mag, ok := res.num(row, "V")
		if !ok {
			mag = math.NaN()
		}
		out = append(out, ConeObject{
			MainID:    strings.Join(strings.Fields(res.str(row, "main_id")), " "),
			OType:     res.str(row, "otype"),
			RA:        ra,
			Dec:       dec,
			Magnitude: mag,
		})
	}
	return out, nil
}

type column struct {
	Name string `json:"name"`
}

type tapResponse struct {
	Metadata []column `json:"metadata"`
	Fields   []column `json:"fields"`
	Data     [][]any  `json:"data"`
}

type tapResult struct {
	index map[string]int
	rows  [][]any
}

func (c *Client) query(ctx context.Context, adql string) (*tapResult, error) {
	form := url.Values{
		"request": {"doQuery"},
		"lang":    {"adql"},
		"format":  {"json"},
		"query":   {adql},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create SIMBAD request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query SIMBAD: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read SIMBAD response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SIMBAD returned status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed tapResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode SIMBAD response: %w", err)
	}

	cols := parsed.Metadata
	if len(cols) == 0 {
		cols = parsed.Fields
	}
	res := &tapResult{index: make(map[string]int, len(cols)), rows: parsed.Data}
	for i, col := range cols {
		res.index[col.Name] = i
	}
	return res, nil
}

func (r *tapResult) value(row []any, name string) any {
	i, ok := r.index[name]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

func (r *tapResult) str(row []any, name string) string {
	switch v := r.value(row, name).(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r *tapResult) num(row []any, name string) (float64, bool) {
	v, ok := r.value(row, name).(float64)
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// escape doubles single quotes for an ADQL string literal.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
