package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrUnknownVariant means the requested variant is not in the catalogue.
	ErrUnknownVariant = errors.New("unknown model variant")
	// ErrDownloadFailed wraps any fetch or write failure; the partial file
	// has been removed by the time it is returned.
	ErrDownloadFailed = errors.New("model download failed")
	// ErrDownloadInProgress is returned when a second download is requested
	// while one is already running. Requests are rejected, not queued.
	ErrDownloadInProgress = errors.New("model download already in progress")
)

/// readyFraction is the size-based freshness heuristic: a file at least this
// fraction of the catalogued size is considered a complete download. Kept
// at 90% deliberately; tightening it would make previously valid cached
// models appear missing.
const readyFraction = 0.9

// ProgressFunc receives download progress as bytes read against the
// catalogued expected size.
type ProgressFunc func(variant string, read, total int64)

// ManagerConfig contains model manager construction parameters. Zero
// values fall back to the built-in catalogue and base URL.
type ManagerConfig struct {
	Dir       string
	BaseURL   string
	Timeout   time.Duration
	Catalogue []Descriptor
	Progress  ProgressFunc
}

// Manager resolves model variants to ready local files, downloading them
// on demand. At most one download runs at a time.
type Manager struct {
	dir       string
	baseURL   string
	catalogue []Descriptor
	progress  ProgressFunc
	client    *http.Client
	logger    *slog.Logger

	downloading atomic.Bool

	mu              sync.Mutex
	downloads       uint64
	bytesDownloaded int64
}

// ManagerStats is a snapshot of download activity for monitoring.
type ManagerStats struct {
	Downloads       uint64 `json:"downloads"`
	BytesDownloaded int64  `json:"bytes_downloaded"`
	InProgress      bool   `json:"in_progress"`
}

// NewManager creates a model manager storing files under cfg.Dir.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	catalogue := cfg.Catalogue
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Manager{
		dir:       cfg.Dir,
		baseURL:   baseURL,
		catalogue: catalogue,
		progress:  cfg.Progress,
		logger:    logger,
		client: &http.Client{
			Timeout: timeout,
			// Follow at most one redirect; the first Location is treated
			// as the canonical source.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 1 {
					return fmt.Errorf("stopped after one redirect")
				}
				return nil
			},
		},
	}
}

// Lookup returns the catalogue entry for a variant.
func (m *Manager) Lookup(variant string) (Descriptor, bool) {
	for _, d := range m.catalogue {
		if d.Variant == variant {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Catalogue returns all known variants.
func (m *Manager) Catalogue() []Descriptor {
	out := make([]Descriptor, len(m.catalogue))
	copy(out, m.catalogue)
	return out
}

// Path returns the expected on-disk location for a variant without
// checking readiness.
func (m *Manager) Path(variant string) (string, error) {
	desc, ok := m.Lookup(variant)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}
	return filepath.Join(m.dir, desc.FileName), nil
}

// IsReady reports whether the variant's file exists and passes the size
// heuristic.
func (m *Manager) IsReady(variant string) bool {
	desc, ok := m.Lookup(variant)
	if !ok {
		return false
	}
	return m.fileReady(filepath.Join(m.dir, desc.FileName), desc.ExpectedSize)
}

func (m *Manager) fileReady(path string, expectedSize int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return float64(info.Size()) >= float64(expectedSize)*readyFraction
}

// Resolve returns a ready local file for the variant, downloading it first
// if absent. A concurrent Resolve that needs a download is rejected with
// ErrDownloadInProgress.
func (m *Manager) Resolve(ctx context.Context, variant string) (string, error) {
	desc, ok := m.Lookup(variant)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariant, variant)
	}

	path := filepath.Join(m.dir, desc.FileName)
	if m.fileReady(path, desc.ExpectedSize) {
		m.logger.Debug("Model already present",
			slog.String("variant", variant),
			slog.String("path", path),
		)
		return path, nil
	}

	if !m.downloading.CompareAndSwap(false, true) {
		return "", ErrDownloadInProgress
	}
	defer m.downloading.Store(false)

	if err := m.download(ctx, desc, path); err != nil {
		return "", err
	}
	return path, nil
}

// download fetches the model file. Any failure or cancellation removes the
// partially written file before returning.
func (m *Manager) download(ctx context.Context, desc Descriptor, path string) error {
	url := m.baseURL + desc.FileName
	m.logger.Info("Downloading model",
		slog.String("variant", desc.Variant),
		slog.String("url", url),
		slog.Int64("expected_size", desc.ExpectedSize),
	)

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create model dir: %v", ErrDownloadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrDownloadFailed, resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create file: %v", ErrDownloadFailed, err)
	}

	written, err := m.copyWithProgress(ctx, out, resp.Body, desc)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	m.mu.Lock()
	m.downloads++
	m.bytesDownloaded += written
	m.mu.Unlock()

	m.logger.Info("Model download complete",
		slog.String("variant", desc.Variant),
		slog.Int64("bytes", written),
	)
	return nil
}

// copyWithProgress streams the response body to disk, reporting progress
// and honoring context cancellation between reads.
func (m *Manager) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, desc Descriptor) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	var lastPct int64 = -1

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)

			if m.progress != nil {
				m.progress(desc.Variant, written, desc.ExpectedSize)
			}
			if pct := written * 100 / max(desc.ExpectedSize, 1); pct/10 > lastPct/10 {
				lastPct = pct
				m.logger.Debug("Download progress",
					slog.String("variant", desc.Variant),
					slog.Int64("percent", pct),
				)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// Stats returns a snapshot of download activity.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		Downloads:       m.downloads,
		BytesDownloaded: m.bytesDownloaded,
		InProgress:      m.downloading.Load(),
	}
}
