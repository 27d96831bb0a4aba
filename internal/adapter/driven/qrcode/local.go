// Package qrcode implements the CredentialRenderer port: a local encoder and
// an optional remote QR service fronted by an in-memory HTTP cache.
package qrcode

import (
	"context"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/ericfisherdev/gatecheck/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialRenderer = (*LocalRenderer)(nil)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 300

// LocalRenderer encodes payloads in-process.
type LocalRenderer struct {
	size int
}

// NewLocalRenderer returns a renderer producing size x size images.
// Non-positive sizes fall back to DefaultSize.
func NewLocalRenderer(size int) *LocalRenderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &LocalRenderer{size: size}
}

// RenderPNG encodes payload with medium error correction.
func (r *LocalRenderer) RenderPNG(_ context.Context, payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, r.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
