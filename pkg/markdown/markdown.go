package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts a post body into HTML.
type Renderer interface {
	Render(body string) (string, error)
}

const (
	EngineLite     = "lite"
	EngineGoldmark = "goldmark"
)

// New returns the renderer registered under engine. An empty engine selects
// the lite dialect.
func New(engine string, safe bool) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineLite:
		if safe {
			return NewLite(WithSafeMode()), nil
		}
		return NewLite(), nil
	case EngineGoldmark:
		return NewGoldmark(safe), nil
	default:
		return nil, fmt.Errorf("unknown markdown engine %q", engine)
	}
}

// Goldmark renders full CommonMark (plus GFM) for sites that outgrow the
// lite dialect.
type Goldmark struct {
	md goldmark.Markdown
}

func NewGoldmark(safe bool) *Goldmark {
	var rendererOptions []renderer.Option
	if !safe {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(rendererOptions...),
		),
	}
}

func (g *Goldmark) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}
