package render

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 400

// QREncoder renders credential payloads as PNG QR codes.
type QREncoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// QROption customises a QREncoder.
type QROption func(*QREncoder)

// WithQRSize sets the image edge length in pixels.
func WithQRSize(size int) QROption {
	return func(e *QREncoder) {
		if size > 0 {
			e.size = size
		}
	}
}

// WithRecoveryLevel overrides the error correction level.
func WithRecoveryLevel(level qrcode.RecoveryLevel) QROption {
	return func(e *QREncoder) {
		e.level = level
	}
}

// NewQREncoder builds an encoder using the highest error correction level so
// printed cards survive creases and glare.
func NewQREncoder(opts ...QROption) *QREncoder {
	enc := &QREncoder{
		size:  defaultQRSize,
		level: qrcode.Highest,
	}
	for _, opt := range opts {
		opt(enc)
	}
	return enc
}

// Size returns the configured image size.
func (e *QREncoder) Size() int {
	return e.size
}

// Encode returns the PNG bytes for payload.
func (e *QREncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("qr: payload is empty")
	}
	png, err := qrcode.Encode(payload, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

// DataURL embeds PNG bytes as a data URL suitable for an <img> src.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
