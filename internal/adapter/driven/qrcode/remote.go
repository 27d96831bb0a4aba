package qrcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialRenderer = (*RemoteRenderer)(nil)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

const maxImageBytes = 2 << 20

// RemoteRenderer fetches QR images from an HTTP service such as
// api.qrserver.com. The URL template carries {data} and {size}
// placeholders. Responses are cached in memory honoring the service's
// cache headers. When the service fails, the fallback renderer is used.
type RemoteRenderer struct {
	client      *http.Client
	urlTemplate string
	size        int
	fallback    driven.CredentialRenderer
	logger      *slog.Logger
}

// NewRemoteRenderer creates a RemoteRenderer with a caching transport.
func NewRemoteRenderer(urlTemplate string, size int, fallback driven.CredentialRenderer, logger *slog.Logger) *RemoteRenderer {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	cacheTransport.MarkCachedResponses = true

	return NewRemoteRendererWithHTTPClient(&http.Client{
		Transport: cacheTransport,
		Timeout:   10 * time.Second,
	}, urlTemplate, size, fallback, logger)
}

// NewRemoteRendererWithHTTPClient creates a RemoteRenderer with a custom http.Client.
// This constructor is intended for testing.
func NewRemoteRendererWithHTTPClient(client *http.Client, urlTemplate string, size int, fallback driven.CredentialRenderer, logger *slog.Logger) *RemoteRenderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &RemoteRenderer{
		client:      client,
		urlTemplate: urlTemplate,
		size:        size,
		fallback:    fallback,
		logger:      logger,
	}
}

// RenderPNG asks the remote service for an image, falling back to the local
// encoder when the request fails or the body is not a PNG.
func (r *RemoteRenderer) RenderPNG(ctx context.Context, payload string) ([]byte, error) {
	png, err := r.fetch(ctx, payload)
	if err == nil {
		return png, nil
	}
	if r.fallback == nil {
		return nil, err
	}

	r.logger.Warn("remote qr render failed, using local encoder", "error", err)
	return r.fallback.RenderPNG(ctx, payload)
}

func (r *RemoteRenderer) fetch(ctx context.Context, payload string) ([]byte, error) {
	size := strconv.Itoa(r.size)
	target := strings.NewReplacer(
		"{data}", url.QueryEscape(payload),
		"{size}", size+"x"+size,
	).Replace(r.urlTemplate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build qr request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch qr image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch qr image: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read qr image: %w", err)
	}
	if !bytes.HasPrefix(body, pngMagic) {
		return nil, fmt.Errorf("qr service returned %q, not a png", resp.Header.Get("Content-Type"))
	}

	if resp.Header.Get(httpcache.XFromCache) != "" {
		r.logger.Debug("qr image served from cache")
	}

	return body, nil
}
