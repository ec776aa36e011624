// Package docling implements the Granite Docling preprocessor: chat
// templating and Idefics3-style image splitting.
package docling

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"doclingd/internal/engine"
)

// Special tokens used in the expanded prompt.
const (
	ImageToken       = "<image>"
	FakeImageToken   = "<fake_token_around_image>"
	GlobalImageToken = "<global-img>"
)

// ErrImageCount reports a prompt whose image placeholders do not match the
// number of images, e.g. an instruction that itself contains "<image>".
var ErrImageCount = errors.New("image placeholder count mismatch")

// Preprocessor implements engine.Preprocessor.
type Preprocessor struct {
	cfg Config
}

// New returns a preprocessor using cfg; zero fields take DefaultConfig values.
func New(cfg Config) *Preprocessor {
	def := DefaultConfig()
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	if cfg.LongestEdge <= 0 {
		cfg.LongestEdge = def.LongestEdge
	}
	if cfg.ImageSeqLen <= 0 {
		cfg.ImageSeqLen = def.ImageSeqLen
	}
	if cfg.DefaultInstruction == "" {
		cfg.DefaultInstruction = def.DefaultInstruction
	}
	return &Preprocessor{cfg: cfg}
}

// Config returns the effective configuration.
func (p *Preprocessor) Config() Config { return p.cfg }

// ApplyChatTemplate renders messages in the Granite chat format.
func (p *Preprocessor) ApplyChatTemplate(messages []engine.Message, addGenerationPrompt bool) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages")
	}
	return renderChat(messages, addGenerationPrompt, p.cfg.DefaultInstruction)
}

// Pack tiles every image and expands the matching placeholder in text.
// Rows and Cols of the payload describe the first image.
func (p *Preprocessor) Pack(text string, images []*image.RGBA, opts engine.PackOptions) (*engine.Payload, error) {
	if n := strings.Count(text, ImageToken); n != len(images) {
		return nil, fmt.Errorf("%w: prompt has %d image placeholders for %d images", ErrImageCount, n, len(images))
	}
	payload := &engine.Payload{Prompt: text}
	var expanded strings.Builder
	rest := text
	for i, img := range images {
		if img == nil || img.Bounds().Empty() {
			return nil, fmt.Errorf("image %d is empty", i)
		}
		var tiles []*image.RGBA
		rows, cols := 0, 0
		if opts.SplitImage {
			tiles, rows, cols = p.split(img)
		}
		tiles = append(tiles, resize(img, p.cfg.TileSize, p.cfg.TileSize))
		if i == 0 {
			payload.Rows, payload.Cols = rows, cols
		}
		payload.Tiles = append(payload.Tiles, tiles...)

		idx := strings.Index(rest, ImageToken)
		expanded.WriteString(rest[:idx])
		expanded.WriteString(p.imageTokens(rows, cols))
		rest = rest[idx+len(ImageToken):]
	}
	expanded.WriteString(rest)
	payload.Expanded = expanded.String()
	return payload, nil
}

// split scales img so its longest side equals LongestEdge, rounds both
// sides up to a multiple of TileSize and cuts it into row-major tiles.
func (p *Preprocessor) split(img *image.RGBA) ([]*image.RGBA, int, int) {
	w, h := scaledSize(img.Bounds().Dx(), img.Bounds().Dy(), p.cfg.LongestEdge)
	ts := p.cfg.TileSize
	cols := (w + ts - 1) / ts
	rows := (h + ts - 1) / ts
	if rows*cols <= 1 {
		return nil, 0, 0
	}
	big := resize(img, cols*ts, rows*ts)
	tiles := make([]*image.RGBA, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			rect := image.Rect(c*ts, r*ts, (c+1)*ts, (r+1)*ts)
			tile := image.NewRGBA(image.Rect(0, 0, ts, ts))
			draw.Draw(tile, tile.Bounds(), big, rect.Min, draw.Src)
			tiles = append(tiles, tile)
		}
	}
	return tiles, rows, cols
}

func (p *Preprocessor) imageTokens(rows, cols int) string {
	seq := strings.Repeat(ImageToken, p.cfg.ImageSeqLen)
	global := FakeImageToken + GlobalImageToken + seq + FakeImageToken
	if rows == 0 && cols == 0 {
		return global
	}
	var b strings.Builder
	for r := 1; r <= rows; r++ {
		for c := 1; c <= cols; c++ {
			fmt.Fprintf(&b, "%s<row_%d_col_%d>%s", FakeImageToken, r, c, seq)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(global)
	return b.String()
}

// scaledSize keeps the aspect ratio with the longest side set to edge.
func scaledSize(w, h, edge int) (int, int) {
	if w >= h {
		nh := int(float64(h) * float64(edge) / float64(w))
		return edge, max(nh, 1)
	}
	nw := int(float64(w) * float64(edge) / float64(h))
	return max(nw, 1), edge
}

func resize(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
