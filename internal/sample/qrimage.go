package sample

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
)

// Label image formats.
const (
	FormatPNG     = "png"
	FormatSVG     = "svg"
	FormatDataURL = "dataurl"
)

// LabelSize is the rendered width and height of a label image, in pixels.
const LabelSize = 300

// Image is a rendered scan-code label.
type Image struct {
	Code        string
	Format      string
	ContentType string
	Data        []byte
}

// QRImage renders the scan code of sample id as a printable label.
func (s *Service) QRImage(ctx context.Context, id, format string) (*Image, error) {
	var smp models.Sample
	if err := workflow.Load(s.db.WithContext(ctx).Select("id", "qr_code"), workflow.Sample, id, &smp); err != nil {
		return nil, err
	}
	return RenderQR(smp.QRCode, format)
}

// RenderQR encodes code at the highest error-correction level. format is
// png, svg or dataurl (case-insensitive); empty means png.
func RenderQR(code, format string) (*Image, error) {
	if code == "" {
		return nil, &workflow.ValidationError{Field: "code", Reason: "is required"}
	}
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = FormatPNG
	}

	q, err := qrcode.New(code, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("sample: encode qr %s: %w", code, err)
	}

	img := &Image{Code: code, Format: f}
	switch f {
	case FormatPNG, FormatDataURL:
		png, err := q.PNG(LabelSize)
		if err != nil {
			return nil, fmt.Errorf("sample: render qr %s: %w", code, err)
		}
		img.ContentType, img.Data = "image/png", png
		if f == FormatDataURL {
			img.ContentType = "text/plain; charset=utf-8"
			img.Data = []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		}
	case FormatSVG:
		img.ContentType, img.Data = "image/svg+xml", svg(q.Bitmap())
	default:
		return nil, &workflow.ValidationError{
			Field:  "format",
			Reason: fmt.Sprintf("must be one of %s, %s, %s; got %q", FormatPNG, FormatSVG, FormatDataURL, format),
		}
	}
	return img, nil
}

// svg draws the module bitmap (quiet zone included) as one path scaled to
// LabelSize.
func svg(bitmap [][]bool) []byte {
	n := len(bitmap)
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		LabelSize, LabelSize, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#FFFFFF"/><path fill="#000000" d="`, n, n)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return []byte(b.String())
}
