// package artwork loads cover art and renders it as terminal half-block text.
//
// Artwork arrives either as inline image bytes, which are decoded directly, or as a URL,
// which is fetched over HTTP first. JPEG, PNG, GIF and WebP are supported.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/cull/internal/models"
	"github.com/desertthunder/cull/internal/shared"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxImageBytes = 8 << 20
	halfBlock     = "▀"
)

// Loader fetches and decodes cover art.
type Loader struct {
	client *http.Client
	width  int
}

// NewLoader creates a [Loader] that renders art width cells wide. A nil client uses [http.DefaultClient].
func NewLoader(client *http.Client, width int) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if width <= 0 {
		width = 24
	}
	return &Loader{client: client, width: width}
}

// Width returns the rendered width in cells.
func (l *Loader) Width() int { return l.width }

// Load decodes art, fetching it first when it is a URL.
func (l *Loader) Load(ctx context.Context, art models.Artwork) (image.Image, error) {
	switch {
	case art.Inline():
		return decode(bytes.NewReader(art.Data))
	case art.URL != "":
		return l.fetch(ctx, art.URL)
	default:
		return nil, fmt.Errorf("%w: track has no artwork", shared.ErrInvalidInput)
	}
}

// Render loads art and renders it.
func (l *Loader) Render(ctx context.Context, art models.Artwork) (string, error) {
	img, err := l.Load(ctx, art)
	if err != nil {
		return "", err
	}
	return Render(img, l.width), nil
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: artwork: %w", shared.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: artwork: status %d", shared.ErrFetch, resp.StatusCode)
	}

	return decode(io.LimitReader(resp.Body, maxImageBytes))
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

// Render scales img to width cells and draws it with half blocks: each cell shows
// two vertically stacked pixels, the upper as foreground and the lower as background.
func Render(img image.Image, width int) string {
	bounds := img.Bounds()
	if width <= 0 || bounds.Dx() == 0 || bounds.Dy() == 0 {
		return ""
	}

	height := width * bounds.Dy() / bounds.Dx()
	if height < 2 {
		height = 2
	}
	height += height % 2

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var b strings.Builder
	for y := 0; y < height; y += 2 {
		for x := 0; x < width; x++ {
			cell := lipgloss.NewStyle().
				Foreground(hex(scaled.At(x, y))).
				Background(hex(scaled.At(x, y+1)))
			b.WriteString(cell.Render(halfBlock))
		}
		if y+2 < height {
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func hex(c color.Color) lipgloss.Color {
	r, g, b, _ := c.RGBA()
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8))
}
