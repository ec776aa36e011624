// Package input turns raw uploaded bytes and an instruction into the packed
// payload a generator consumes.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"doclingd/internal/engine"
)

// MaxPixels bounds the decoded raster size.
const MaxPixels = 100_000_000

var (
	ErrEmptyImage    = errors.New("empty image")
	ErrUndecodable   = errors.New("undecodable image")
	ErrImageTooLarge = errors.New("image too large")
)

// Decode decodes a JPEG, PNG, GIF, WebP, BMP or TIFF image into an RGBA
// raster at its native resolution.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyImage
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an RGBA raster anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// UserTurn is the single chat turn sent with every page: the image first,
// then the instruction.
func UserTurn(instruction string) engine.Message {
	return engine.Message{
		Role: "user",
		Content: []engine.Part{
			{Type: engine.PartImage},
			{Type: engine.PartText, Text: instruction},
		},
	}
}

// Prepare renders the user turn through pre's chat template with the
// generation prompt appended and packs it with raster, splitting large
// images into tiles. The instruction must not contain the image token
// ("<image>"); such a prompt carries more placeholders than images and
// Pack rejects it with docling.ErrImageCount.
func Prepare(pre engine.Preprocessor, raster *image.RGBA, instruction string) (*engine.Payload, error) {
	if raster == nil || raster.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	text, err := pre.ApplyChatTemplate([]engine.Message{UserTurn(instruction)}, true)
	if err != nil {
		return nil, fmt.Errorf("apply chat template: %w", err)
	}
	p, err := pre.Pack(text, []*image.RGBA{raster}, engine.PackOptions{SplitImage: true})
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	return p, nil
}
