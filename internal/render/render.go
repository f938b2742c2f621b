// Package render turns documents into exportable artifacts.
package render

import (
	"context"
	"errors"

	"github.com/emrgen/mediakit/internal/document"
)

const (
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatHTML = "html"
	FormatSVG  = "svg"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoConverter       = errors.New("no converter configured")
)

var mimeTypes = map[string]string{
	FormatPDF:  "application/pdf",
	FormatPNG:  "image/png",
	FormatHTML: "text/html; charset=utf-8",
	FormatSVG:  "image/svg+xml",
}

// MimeType returns the content type of a format, or "" for unknown formats.
func MimeType(format string) string {
	return mimeTypes[format]
}

// Options are per-export rendering choices. Watermark is decided when the
// export is requested and cannot be changed afterwards.
type Options struct {
	Watermark bool   `json:"watermark"`
	Title     string `json:"title,omitempty"`
	PageSize  string `json:"page_size,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Output is a rendered artifact.
type Output struct {
	Bytes    []byte
	MimeType string
}

// Renderer renders a document into a format.
type Renderer interface {
	Render(ctx context.Context, doc *document.Document, format string, opts Options) (*Output, error)
}

var _ Renderer = (*Engine)(nil)

// Engine renders HTML and SVG itself and hands PDF and PNG to a converter.
type Engine struct {
	html      *HTML
	converter Converter
}

// NewEngine creates a renderer. A nil converter disables PDF and PNG.
func NewEngine(converter Converter) (*Engine, error) {
	html, err := NewHTML()
	if err != nil {
		return nil, err
	}

	return &Engine{html: html, converter: converter}, nil
}

// Supports reports whether the engine can produce the format.
func (e *Engine) Supports(format string) bool {
	switch format {
	case FormatHTML, FormatSVG:
		return true
	case FormatPDF, FormatPNG:
		return e.converter != nil
	default:
		return false
	}
}

func (e *Engine) Render(ctx context.Context, doc *document.Document, format string, opts Options) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatHTML:
		data, err = e.html.Page(doc, opts)
	case FormatSVG:
		data, err = e.html.SVG(doc, opts)
	case FormatPDF, FormatPNG:
		if e.converter == nil {
			return nil, ErrNoConverter
		}
		var page []byte
		page, err = e.html.Page(doc, opts)
		if err == nil {
			data, err = e.converter.Convert(ctx, page, format, opts)
		}
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	return &Output{Bytes: data, MimeType: MimeType(format)}, nil
}
