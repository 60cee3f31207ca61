package capture

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MJPEGSource reads frames from a camera daemon that serves the latest
// JPEG frame over HTTP. The daemon owns the V4L2 device; claiming and
// releasing it maps to the daemon's claim endpoints so only one session
// consumes the camera at a time.
type MJPEGSource struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	acquired bool
}

// NewMJPEGSource creates a source for the camera daemon at baseURL.
func NewMJPEGSource(baseURL string) *MJPEGSource {
	return &MJPEGSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Acquire claims the camera. Any failure to reach or claim the daemon is
// reported as ErrDeviceUnavailable.
func (s *MJPEGSource) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired {
		return fmt.Errorf("%w: already acquired", ErrDeviceUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/claim", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: claim returned status %d", ErrDeviceUnavailable, resp.StatusCode)
	}
	s.acquired = true
	return nil
}

// ReadFrame fetches and decodes the latest frame.
func (s *MJPEGSource) ReadFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	acquired := s.acquired
	s.mu.Unlock()
	if !acquired {
		return nil, fmt.Errorf("read frame: device not acquired")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/frame", nil)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("read frame: status %d", resp.StatusCode)
	}

	img, err := jpeg.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Release gives the camera back to the daemon.
func (s *MJPEGSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired {
		return nil
	}
	s.acquired = false

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/release", nil)
	if err != nil {
		return fmt.Errorf("release device: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("release device: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("release device: status %d", resp.StatusCode)
	}
	return nil
}
