package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testFrameJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 64, B: 32, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestMJPEGSourceLifecycle(t *testing.T) {
	frame := testFrameJPEG(t)
	var claimed, released atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/claim":
			claimed.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/release":
			released.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/frame":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(frame)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	ctx := context.Background()

	if err := src.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := claimed.Load(); got != 1 {
		t.Errorf("claim calls = %d, want 1", got)
	}

	img, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("frame bounds = %v, want 64x48", img.Bounds())
	}

	if err := src.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got := released.Load(); got != 1 {
		t.Errorf("release calls = %d, want 1", got)
	}

	// Releasing again is a no-op.
	if err := src.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if got := released.Load(); got != 1 {
		t.Errorf("release calls after no-op = %d, want 1", got)
	}
}

func TestMJPEGSourceAcquireUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	err := src.Acquire(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestMJPEGSourceReadWithoutAcquire(t *testing.T) {
	src := NewMJPEGSource("http://localhost:0")
	if _, err := src.ReadFrame(context.Background()); err == nil {
		t.Fatal("ReadFrame() before Acquire() should fail")
	}
}
