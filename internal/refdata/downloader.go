package refdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadConfig configures reference file downloads.
type DownloadConfig struct {
	CacheDir      string
	ForceDownload bool
	Timeout       time.Duration
}

// Downloader fetches reference files once and serves them from a cache
// directory afterwards.
type Downloader struct {
	config     DownloadConfig
	httpClient *http.Client
}

// NewDownloader creates a downloader. A leading ~ in CacheDir expands to the
// home directory.
func NewDownloader(config DownloadConfig) *Downloader {
	if strings.HasPrefix(config.CacheDir, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			config.CacheDir = filepath.Join(homeDir, config.CacheDir[1:])
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	return &Downloader{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// CachePath returns where filename is cached.
func (d *Downloader) CachePath(filename string) string {
	return filepath.Join(d.config.CacheDir, filename)
}

// Fetch returns the cached copy of filename, downloading it from url first
// when absent.
func (d *Downloader) Fetch(ctx context.Context, url, filename string) (string, error) {
	if err := os.MkdirAll(d.config.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	cachedPath := d.CachePath(filename)
	if !d.config.ForceDownload {
		if info, err := os.Stat(cachedPath); err == nil && info.Size() > 0 {
			slog.Debug("Using cached reference file", "path", cachedPath)
			return cachedPath, nil
		}
	}

	slog.Info("Downloading reference file", "url", url)
	if err := d.downloadFile(ctx, url, cachedPath); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", filename, err)
	}

	slog.Info("Reference file downloaded", "path", cachedPath)
	return cachedPath, nil
}

func (d *Downloader) downloadFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}
	slog.Debug("Download complete", "bytes", n, "path", destPath)

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// ClearCache removes all cached reference files.
func (d *Downloader) ClearCache() error {
	slog.Info("Clearing reference cache", "path", d.config.CacheDir)
	return os.RemoveAll(d.config.CacheDir)
}
