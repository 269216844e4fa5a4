package sample

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/zulandar/labyard/internal/workflow"
)

func TestQRImage_Formats(t *testing.T) {
	svc, db, _ := testService(t)
	req := seedRequirement(t, db)
	smp, err := svc.Create(context.Background(), CreateOpts{RequirementID: req.ID, Type: "soil"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		format      string
		contentType string
		check       func(t *testing.T, data []byte)
	}{
		{"", "image/png", checkPNG},
		{"png", "image/png", checkPNG},
		{"svg", "image/svg+xml", func(t *testing.T, data []byte) {
			s := string(data)
			if !strings.HasPrefix(s, "<svg") || !strings.Contains(s, `width="300"`) || !strings.HasSuffix(s, "</svg>") {
				t.Errorf("svg = %.80q...", s)
			}
		}},
		{"dataURL", "text/plain; charset=utf-8", func(t *testing.T, data []byte) {
			const prefix = "data:image/png;base64,"
			s := string(data)
			if !strings.HasPrefix(s, prefix) {
				t.Fatalf("data url = %.40q..., want %s prefix", s, prefix)
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, prefix))
			if err != nil {
				t.Fatalf("decode base64: %v", err)
			}
			checkPNG(t, raw)
		}},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			img, err := svc.QRImage(context.Background(), smp.ID, tt.format)
			if err != nil {
				t.Fatalf("QRImage: %v", err)
			}
			if img.Code != smp.QRCode {
				t.Errorf("Code = %q, want %q", img.Code, smp.QRCode)
			}
			if img.ContentType != tt.contentType {
				t.Errorf("ContentType = %q, want %q", img.ContentType, tt.contentType)
			}
			tt.check(t, img.Data)
		})
	}
}

func checkPNG(t *testing.T, data []byte) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("not a png: %v", err)
	}
	if cfg.Width != LabelSize || cfg.Height != LabelSize {
		t.Errorf("png = %dx%d, want %dx%d", cfg.Width, cfg.Height, LabelSize, LabelSize)
	}
}

func TestQRImage_Errors(t *testing.T) {
	svc, db, _ := testService(t)
	req := seedRequirement(t, db)
	smp, err := svc.Create(context.Background(), CreateOpts{RequirementID: req.ID, Type: "soil"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.QRImage(context.Background(), smp.ID, "gif")
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) || ve.Field != "format" {
		t.Errorf("unknown format: got %v, want format ValidationError", err)
	}

	_, err = svc.QRImage(context.Background(), "missing", "png")
	var nf *workflow.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing sample: got %v, want NotFoundError", err)
	}
}

func TestRenderQR_SameCodeSameImage(t *testing.T) {
	a, err := RenderQR("QR-2026-000042", FormatSVG)
	if err != nil {
		t.Fatalf("RenderQR: %v", err)
	}
	b, _ := RenderQR("QR-2026-000042", "SVG")
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("rendering the same code twice gave different images")
	}
	if _, err := RenderQR("", FormatPNG); err == nil {
		t.Error("expected error for empty code")
	}
}
