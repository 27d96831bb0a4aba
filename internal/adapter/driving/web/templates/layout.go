// Package templates holds the page layout shared by every GUI page.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Writer accumulates the first write error so components can emit markup
// without checking every call.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup.
func (p *Writer) Raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

// Text writes s HTML-escaped.
func (p *Writer) Text(s string) {
	p.Raw(templ.EscapeString(s))
}

// Component renders c into the underlying writer.
func (p *Writer) Component(ctx context.Context, c templ.Component) {
	if p.err == nil {
		p.err = c.Render(ctx, p.w)
	}
}

// Err returns the first write error.
func (p *Writer) Err() error {
	return p.err
}

// Layout wraps body in the HTML document shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := NewWriter(w)
		p.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.Raw(`<title>`)
		p.Text(title)
		p.Raw(`</title><link rel="stylesheet" href="/static/app.css">`)
		p.Raw(`<script src="/static/gate.js" defer></script></head><body><main>`)
		p.Component(ctx, body)
		p.Raw(`</main></body></html>`)
		return p.Err()
	})
}

// CSRFField renders the hidden CSRF form field.
func CSRFField(p *Writer, token string) {
	p.Raw(`<input type="hidden" name="csrf_token" value="`)
	p.Text(token)
	p.Raw(`">`)
}
