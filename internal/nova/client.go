// Package nova talks to the nova.astrometry.net plate-solving API.
//
// A solve is a small state machine: login yields a session, an upload yields
// a submission, the submission eventually yields a job, and the job ends in
// success or failure. The WCS header of a solved job is then downloaded.
package nova

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL  = "https://nova.astrometry.net/api/"
	DefaultSiteURL = "https://nova.astrometry.net/"
)

// State is the status of a solving job.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

var (
	// ErrTimeout is returned when polling exceeds its deadline.
	ErrTimeout = errors.New("timed out waiting for nova")
	// ErrInvalidWCS is returned when a downloaded WCS file is not FITS.
	ErrInvalidWCS = errors.New("downloaded WCS file is not FITS")
)

// Client is a nova API client.
type Client struct {
	APIURL  string
	SiteURL string

	httpClient     *http.Client
	transferClient *http.Client
}

// NewClient creates a client. Empty URLs select the public service. Timeout
// applies to API calls; uploads and downloads get five times as long.
func NewClient(apiURL, siteURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		APIURL:  strings.TrimRight(apiURL, "/") + "/",
		SiteURL: strings.TrimRight(siteURL, "/") + "/",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		transferClient: &http.Client{
			Timeout: 5 * timeout,
		},
	}
}

// Login exchanges an API key for a session token.
func (c *Client) Login(ctx context.Context, apiKey string) (string, error) {
	payload, err := json.Marshal(map[string]string{"apikey": apiKey})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	form := url.Values{"request-json": {string(payload)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp struct {
		Status  string `json:"status"`
		Session string `json:"session"`
		Message string `json:"errormessage"`
	}
	if err := c.do(c.httpClient, req, "login", &resp); err != nil {
		return "", err
	}
	if resp.Status != "success" || resp.Session == "" {
		return "", fmt.Errorf("login rejected: status=%q %s", resp.Status, resp.Message)
	}
	return resp.Session, nil
}

// Upload submits a FITS file for solving and returns the submission id. A
// non-nil scale hints the plate scale in arcsec/pixel.
func (c *Client) Upload(ctx context.Context, session, path string, scale *float64) (int, error) {
	opts := map[string]string{
		"session":              session,
		"allow_commercial_use": "d",
		"allow_modifications":  "d",
		"publicly_visible":     "n",
	}
	if scale != nil && *scale > 0 {
		opts["scale_units"] = "arcsecperpix"
		opts["scale_est"] = strconv.FormatFloat(*scale, 'f', -1, 64)
		opts["scale_err"] = "0.25"
	}
	payload, err := json.Marshal(opts)
	if err != nil {
		return 0, fmt.Errorf("failed to encode upload request: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("request-json", string(payload)); err != nil {
		return 0, fmt.Errorf("failed to write form field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"upload", &body)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var resp struct {
		Status  string `json:"status"`
		SubID   int    `json:"subid"`
		Message string `json:"errormessage"`
	}
	if err := c.do(c.transferClient, req, "upload", &resp); err != nil {
		return 0, err
	}
	if resp.Status != "success" {
		return 0, fmt.Errorf("upload rejected: status=%q %s", resp.Status, resp.Message)
	}
	return resp.SubID, nil
}

// SubmissionJob checks a submission once and returns its first job id, if
// one was assigned yet.
func (c *Client) SubmissionJob(ctx context.Context, subID int) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%ssubmissions/%d", c.APIURL, subID), nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create submission request: %w", err)
	}

	var resp struct {
		Jobs []any `json:"jobs"`
	}
	if err := c.do(c.httpClient, req, fmt.Sprintf("submission %d", subID), &resp); err != nil {
		return 0, false, err
	}
	for _, j := range resp.Jobs {
		if f, ok := j.(float64); ok && f == float64(int(f)) {
			return int(f), true, nil
		}
	}
	return 0, false, nil
}

// JobState checks a job once.
func (c *Client) JobState(ctx context.Context, jobID int) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%sjobs/%d", c.APIURL, jobID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create job request: %w", err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(c.httpClient, req, fmt.Sprintf("job %d", jobID), &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "success":
		return StateSuccess, nil
	case "failure", "error":
		return StateFailure, nil
	default:
		return StatePending, nil
	}
}

// PollSubmission waits until the submission has a job.
func (c *Client) PollSubmission(ctx context.Context, subID int, interval, timeout time.Duration) (int, error) {
	var jobID int
	err := poll(ctx, interval, timeout, func() (bool, error) {
		id, ok, err := c.SubmissionJob(ctx, subID)
		jobID = id
		return ok, err
	})
	if err != nil {
		return 0, fmt.Errorf("submission %d: %w", subID, err)
	}
	return jobID, nil
}

// PollJob waits until the job leaves the pending state.
func (c *Client) PollJob(ctx context.Context, jobID int, interval, timeout time.Duration) (State, error) {
	var state State
	err := poll(ctx, interval, timeout, func() (bool, error) {
		s, err := c.JobState(ctx, jobID)
		state = s
		return s != StatePending, err
	})
	if err != nil {
		return "", fmt.Errorf("job %d: %w", jobID, err)
	}
	return state, nil
}

// DownloadWCS saves the header-only WCS file of a solved job to dest.
func (c *Client) DownloadWCS(ctx context.Context, jobID int, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%swcs_file/%d", c.SiteURL, jobID), nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.transferClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download WCS for job %d: %w", jobID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read WCS for job %d: %w", jobID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("WCS download for job %d returned status %d", jobID, resp.StatusCode)
	}
	if !LooksLikeFITS(data) {
		return fmt.Errorf("%w: job %d, Content-Type=%s, body starts %q",
			ErrInvalidWCS, jobID, resp.Header.Get("Content-Type"), snippet(data, 120))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write WCS file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move WCS file: %w", err)
	}
	return nil
}

// LooksLikeFITS reports whether SIMPLE appears in the first card.
func LooksLikeFITS(data []byte) bool {
	head := data
	if len(head) > 80 {
		head = head[:80]
	}
	return bytes.Contains(head, []byte("SIMPLE"))
}

// do sends req and decodes a JSON response into out.
func (c *Client) do(client *http.Client, req *http.Request, what string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", what, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d: %s", what, resp.StatusCode, snippet(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: non-JSON response (Content-Type=%s): %q",
			what, resp.Header.Get("Content-Type"), snippet(body, 200))
	}
	return nil
}

func poll(ctx context.Context, interval, timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return strings.TrimSpace(string(b))
}
