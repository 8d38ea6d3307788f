// Package evidence renders and composes the tamper-evident capture images
// and runs the per-item capture pipeline.
package evidence

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Attestation panel geometry matches the reference capture tooling.
const (
	attestWidth  = 400
	attestHeight = 100
	attestBorder = 2
)

// Capture timestamps are attested in the platform's reference timezone.
var referenceZone = time.FixedZone("KST", 9*60*60)

const attestAuthority = "KRISS time reference"

// RenderAttestation draws the fixed-size timestamp panel: white background,
// black border, the capture time shifted to the reference offset, and the
// authority label.
func RenderAttestation(at time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, attestWidth, attestHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	black := color.RGBA{A: 255}
	for i := 0; i < attestBorder; i++ {
		drawRectOutline(img, i, i, attestWidth-1-i, attestHeight-1-i, black)
	}

	stamp := at.In(referenceZone).Format("2006-01-02 15:04:05")
	drawText(img, 20, 30, "UTCK3 Timestamp", black)
	drawText(img, 20, 60, stamp, black)
	drawText(img, 20, 90, attestAuthority, black)
	return img
}

// AttestationHTML returns the equivalent panel as an HTML snippet for the
// browser-rendered fallback path.
func AttestationHTML(at time.Time) string {
	stamp := at.In(referenceZone).Format("2006-01-02 15:04:05")
	return fmt.Sprintf(`<div style="width:%dpx;height:%dpx;background:white;border:%dpx solid black;padding:10px;font-family:Arial;box-sizing:border-box;">`+
		`<div style="font-weight:bold;font-size:16px;">UTCK3 Timestamp</div>`+
		`<div style="font-size:16px;margin-top:10px;">%s</div>`+
		`<div style="font-size:16px;margin-top:10px;">%s</div>`+
		`</div>`,
		attestWidth, attestHeight, attestBorder, stamp, attestAuthority)
}

func drawText(img *image.RGBA, x, y int, text string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawRectOutline(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y0, c)
		img.Set(x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		img.Set(x0, y, c)
		img.Set(x1, y, c)
	}
}
