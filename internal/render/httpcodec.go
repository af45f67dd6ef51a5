package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPCodec talks to the external rendering/encoding service. The service
// owns fonts, rasterization, and WEBP/TGS/WEBM encoding; this adapter only
// ships decisions over and receives a finished asset handle back.
type HTTPCodec struct {
	baseURL string
	client  *http.Client

	capOnce sync.Once
	capOK   bool
}

// NewHTTPCodec builds a codec client for the given base URL.
func NewHTTPCodec(baseURL string, client *http.Client) *HTTPCodec {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPCodec{baseURL: baseURL, client: client}
}

type renderRequest struct {
	Kind       string `json:"kind"`
	ContentRef string `json:"content_ref,omitempty"`
	Text       string `json:"text,omitempty"`
	Animated   bool   `json:"animated"`
	FontID     string `json:"font_id,omitempty"`
	Background string `json:"background,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

type renderResponse struct {
	AssetRef string `json:"asset_ref"`
	Format   string `json:"format"`
	Animated bool   `json:"animated"`
	Error    string `json:"error,omitempty"`
}

type capsResponse struct {
	Transparency bool `json:"transparency"`
}

// SupportsTransparency queries the codec capabilities once and caches them.
func (c *HTTPCodec) SupportsTransparency(ctx context.Context) bool {
	c.capOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", nil)
		if err != nil {
			return
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return
		}
		var caps capsResponse
		if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
			return
		}
		c.capOK = caps.Transparency
	})
	return c.capOK
}

// Render submits the request and returns the finished asset reference.
func (c *HTTPCodec) Render(ctx context.Context, in Input, opts Options) (Asset, error) {
	payload := renderRequest{
		Kind:       string(in.Kind),
		ContentRef: in.ContentRef,
		Text:       in.Text,
		Animated:   in.Animated,
		FontID:     opts.Font.ID,
		Background: string(opts.Background),
		Width:      opts.Width,
		Height:     opts.Height,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Asset{}, fmt.Errorf("render: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return Asset{}, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	var decoded renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Asset{}, fmt.Errorf("render: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return Asset{}, fmt.Errorf("render: %s", decoded.Error)
		}
		return Asset{}, fmt.Errorf("render: status %s", resp.Status)
	}
	return Asset{Ref: decoded.AssetRef, Format: decoded.Format, Animated: decoded.Animated}, nil
}
