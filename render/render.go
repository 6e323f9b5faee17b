// Package render turns markdown replies into images. The bot asks a
// Renderer for picture replies; the HTML pipeline below feeds any injected
// screenshot function (headless browser, external service) without this
// module owning one.
package render

import "context"

// Renderer produces an image for a markdown document.
type Renderer interface {
	Render(ctx context.Context, title, markdown string) ([]byte, error)
}

// Screenshot converts a full HTML document into image bytes.
type Screenshot func(ctx context.Context, html string) ([]byte, error)

// HTMLRenderer implements Renderer by building a styled HTML page from the
// markdown and handing it to a Screenshot function.
type HTMLRenderer struct {
	shoot Screenshot
}

func NewHTMLRenderer(shoot Screenshot) *HTMLRenderer {
	return &HTMLRenderer{shoot: shoot}
}

func (r *HTMLRenderer) Render(ctx context.Context, title, markdown string) ([]byte, error) {
	doc, err := HTMLDocument(title, markdown)
	if err != nil {
		return nil, err
	}
	return r.shoot(ctx, doc)
}

var _ Renderer = (*HTMLRenderer)(nil)
