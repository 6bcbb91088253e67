// Package receipt turns a photographed receipt into draft ledger rows.
package receipt

import (
	"context"
	"errors"
	"net/http"

	"smartasset/internal/core"
)

var (
	ErrInferenceFailed   = errors.New("receipt inference failed")
	ErrEmptyResponse     = errors.New("model returned an empty response")
	ErrMalformedResponse = errors.New("model response is not strict JSON")
	ErrUnexpectedShape   = errors.New("model response is not an object or an array of objects")
	ErrUnsupportedImage  = errors.New("unsupported image type")
)

// Interpreter makes one multimodal call per image. It never retries and never
// writes to the ledger.
type Interpreter interface {
	Interpret(ctx context.Context, img Image, categories []string) ([]core.Draft, error)
}

// Image is an uploaded receipt photo.
type Image struct {
	Data     []byte
	MIMEType string
}

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// NewImage sniffs the content type of data and rejects anything that is not
// a JPEG, PNG or WebP picture.
func NewImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrUnsupportedImage
	}
	mime := http.DetectContentType(data)
	if !supportedImageTypes[mime] {
		return Image{}, ErrUnsupportedImage
	}
	return Image{Data: data, MIMEType: mime}, nil
}
