package evidence

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
)

// ComposeVertical stacks the images top to bottom on a white background.
// The canvas width is the widest input; narrower images are left-aligned.
func ComposeVertical(images ...image.Image) *image.RGBA {
	width, height := 0, 0
	for _, img := range images {
		b := img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for _, img := range images {
		b := img.Bounds()
		dst := image.Rect(0, y, b.Dx(), y+b.Dy())
		draw.Draw(canvas, dst, img, b.Min, draw.Over)
		y += b.Dy()
	}
	return canvas
}

// DecodePNG parses PNG bytes into an image.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// EncodePNG serializes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG persists PNG bytes, creating parent directories as needed.
func WritePNG(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write evidence file: %w", err)
	}
	return nil
}

// compositionHTML builds the browser-rendered fallback for image
// composition: the captures stacked in a flex column from local files.
func compositionHTML(paths ...string) string {
	var buf bytes.Buffer
	buf.WriteString(`<div style="display:flex;flex-direction:column;">`)
	for _, p := range paths {
		fmt.Fprintf(&buf, `<img src="file://%s" />`, p)
	}
	buf.WriteString(`</div>`)
	return buf.String()
}
