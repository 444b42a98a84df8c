// Package image defines the Provider interface for cover-art generation.
//
// Implementations must be safe for concurrent use and must return promptly
// when the supplied context is cancelled.
package image

import (
	"context"
	"encoding/base64"
	"errors"
)

// ErrNoImage is returned when the backend answers without image data.
var ErrNoImage = errors.New("image: no image in response")

// Image is a generated picture.
type Image struct {
	// Data holds the encoded image bytes.
	Data []byte

	// MIMEType is the media type of Data, e.g. "image/png".
	MIMEType string
}

// DataURI renders the image as a data: URI suitable for an <img> src.
func (i *Image) DataURI() string {
	if i == nil || len(i.Data) == 0 {
		return ""
	}
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Provider is the abstraction over any image-generation backend.
type Provider interface {
	// Generate renders a single square image for prompt.
	Generate(ctx context.Context, prompt string) (*Image, error)
}
