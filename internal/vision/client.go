// Package vision is the HTTP client for the face detection and embedding
// sidecar (RetinaFace + w600k_r50 served behind a small REST API).
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/diemxuan/face-attendance/internal/align"
)

const defaultBaseURL = "http://localhost:8000"

// Client talks to the vision sidecar.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a vision client for the sidecar at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Detection is a single detected face: corner-format bounding box, the
// five facial landmarks and the detector confidence.
type Detection struct {
	Box       [4]float64
	Landmarks align.LandmarkSet
	Score     float64
}

// detectResponse mirrors the sidecar's /detect JSON payload.
type detectResponse struct {
	FacesCount int `json:"faces_count"`
	Faces      []struct {
		BBox      []float64    `json:"bbox"` // [x1, y1, x2, y2]
		Landmarks [][2]float64 `json:"landmarks"`
		DetScore  float64      `json:"det_score"`
	} `json:"faces"`
	Model string `json:"model"`
}

// embedResponse mirrors the sidecar's /embed/face JSON payload.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// DetectFaces runs face detection on a full frame. An empty slice means
// no face in the frame; that is not an error.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) ([]Detection, error) {
	body, err := c.postMultipartImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := make([]Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 || len(f.Landmarks) != 5 {
			return nil, fmt.Errorf("malformed detection: bbox len %d, landmarks len %d", len(f.BBox), len(f.Landmarks))
		}
		var d Detection
		copy(d.Box[:], f.BBox)
		for i, lm := range f.Landmarks {
			d.Landmarks[i] = align.Point{X: lm[0], Y: lm[1]}
		}
		d.Score = f.DetScore
		out = append(out, d)
	}
	return out, nil
}

// EmbedFace computes the embedding for an aligned 112x112 face crop. The
// sidecar scales pixel values to [-1, 1] before inference.
func (c *Client) EmbedFace(ctx context.Context, crop image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", buf.Bytes())
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embedding, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}
