package render

import (
	"context"
	"testing"

	errs "github.com/matzehuels/gearlayout/pkg/errors"
)

func TestConvertWithoutRsvg(t *testing.T) {
	old := converter
	converter = "gearlayout-no-such-converter"
	defer func() { converter = old }()

	if Available() {
		t.Fatal("Available() = true for a missing binary")
	}
	_, err := ToPNG(context.Background(), []byte("<svg/>"), 2)
	if !errs.Is(err, errs.ErrCodeUnsupported) {
		t.Errorf("ToPNG error = %v, want UNSUPPORTED", err)
	}
	if _, err := ToPDF(context.Background(), []byte("<svg/>")); err == nil {
		t.Error("ToPDF should fail without rsvg-convert")
	}
}

func TestToPNG(t *testing.T) {
	if !Available() {
		t.Skip("rsvg-convert not installed")
	}
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><circle cx="5" cy="5" r="4"/></svg>`)
	png, err := ToPNG(context.Background(), svg, 1)
	if err != nil {
		t.Fatalf("ToPNG: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("output is not a PNG")
	}
}
