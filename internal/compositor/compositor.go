// internal/compositor/compositor.go

// Package compositor turns a template plus bound variables into an encoded
// raster payload. Composition never mutates the template and walks regions
// in declaration order, so identical inputs produce byte-identical output.
package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	stderrors "vdte/internal/common/errors"
	"vdte/internal/models"
)

const jpegQuality = 90

// Compositor renders bound variables onto template canvases.
type Compositor struct {
	maxImageBytes int64
}

func New(maxImageBytes int64) *Compositor {
	return &Compositor{maxImageBytes: maxImageBytes}
}

// Compose renders the flattened surface and encodes it in the template's
// declared output format.
func (c *Compositor) Compose(ctx context.Context, tpl *models.Template, bound models.BoundVariables) (*models.Payload, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, tpl.Width, tpl.Height))

	bg := color.Color(color.White)
	if tpl.Background != "" {
		bg = parseHexColor(tpl.Background)
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, bv := range bound {
		if err := ctx.Err(); err != nil {
			return nil, stderrors.NewCompositionInterruptedError(err)
		}

		if bv.Placeholder.Type == models.PlaceholderImageRef {
			if err := c.drawImage(canvas, bv); err != nil {
				return nil, err
			}
			continue
		}
		drawText(canvas, bv)
	}

	return encode(canvas, tpl.OutputFormat)
}

// drawImage gates on payload size before decoding, then scales the decoded
// image to fill the region.
func (c *Compositor) drawImage(canvas *image.RGBA, bv models.BoundVariable) error {
	name := bv.Placeholder.Name

	if c.maxImageBytes > 0 && int64(len(bv.Image)) > c.maxImageBytes {
		return stderrors.NewAssetTooLargeError(name, int64(len(bv.Image)), c.maxImageBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(bv.Image))
	if err != nil {
		return stderrors.NewUnsupportedImageFormatError(name, err)
	}

	r := bv.Placeholder.Region
	dst := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	xdraw.ApproxBiLinear.Scale(canvas, dst, img, img.Bounds(), xdraw.Over, nil)
	return nil
}

// drawText renders the normalized content with the bitmap face, scaled to
// the declared font size and clipped to the region.
func drawText(canvas *image.RGBA, bv models.BoundVariable) {
	r := bv.Placeholder.Region
	rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)

	col := color.Color(color.Black)
	if bv.Placeholder.Color != "" {
		col = parseHexColor(bv.Placeholder.Color)
	}

	face := basicfont.Face7x13

	if size := bv.Placeholder.FontSize; size > 0 && size != face.Height {
		drawScaledText(canvas, rect, bv.Content, col, size)
		return
	}

	// Baseline vertically centered within the region.
	baseline := r.Y + (r.Height+face.Ascent)/2
	d := font.Drawer{
		Dst:  canvas.SubImage(rect).(*image.RGBA),
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(r.X, baseline),
	}
	d.DrawString(bv.Content)
}

// drawScaledText rasterizes the text at the face's native size and scales
// it so the line height matches the declared font size.
func drawScaledText(canvas *image.RGBA, rect image.Rectangle, content string, col color.Color, size int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, content).Ceil()
	if width == 0 {
		return
	}

	line := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	d := font.Drawer{
		Dst:  line,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(content)

	scale := float64(size) / float64(face.Height)
	dstW := int(float64(width) * scale)
	dstY := rect.Min.Y + (rect.Dy()-size)/2
	dst := image.Rect(rect.Min.X, dstY, rect.Min.X+dstW, dstY+size)

	xdraw.ApproxBiLinear.Scale(canvas.SubImage(rect).(*image.RGBA), dst, line, line.Bounds(), xdraw.Over, nil)
}

func encode(canvas *image.RGBA, format models.OutputFormat) (*models.Payload, error) {
	var buf bytes.Buffer

	switch format {
	case models.FormatPNG:
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, stderrors.NewEncodingFailureError(string(format), err)
		}
	case models.FormatJPEG:
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, stderrors.NewEncodingFailureError(string(format), err)
		}
	default:
		return nil, stderrors.NewEncodingFailureError(string(format),
			fmt.Errorf("unknown output format"))
	}

	b := canvas.Bounds()
	return &models.Payload{
		Bytes:  buf.Bytes(),
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// parseHexColor reads #RRGGBB. Malformed input is rejected at template
// validation; anything else falls back to black.
func parseHexColor(s string) color.Color {
	if len(s) != 7 || s[0] != '#' {
		return color.Black
	}
	hex := func(c byte) uint8 {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10
		}
		return 0
	}
	return color.RGBA{
		R: hex(s[1])<<4 | hex(s[2]),
		G: hex(s[3])<<4 | hex(s[4]),
		B: hex(s[5])<<4 | hex(s[6]),
		A: 0xFF,
	}
}
