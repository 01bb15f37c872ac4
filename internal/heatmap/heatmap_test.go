package heatmap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/suturelab/tissuesim/internal/tissue"
)

func TestProjectKeepsPeakOverY(t *testing.T) {
	res := tissue.GridResolution{X: 2, Y: 3, Z: 2}
	levels := make([]float64, res.Count())
	// Column (1, *, 0): peak at y=2.
	levels[1+2*(0+3*0)] = 0.2
	levels[1+2*(2+3*0)] = 0.7
	// Column (0, *, 1): single value at y=1.
	levels[0+2*(1+3*1)] = 0.4

	proj, err := Project(levels, res)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := []float64{0, 0.7, 0.4, 0}
	for i := range want {
		if proj[i] != want[i] {
			t.Errorf("column %d: expected %v, got %v", i, want[i], proj[i])
		}
	}
}

func TestProjectRejectsWrongLength(t *testing.T) {
	if _, err := Project(make([]float64, 5), tissue.GridResolution{X: 2, Y: 2, Z: 2}); !errors.Is(err, ErrLevelCount) {
		t.Errorf("expected ErrLevelCount, got %v", err)
	}
}

func TestToneRange(t *testing.T) {
	if Tone(0, 1) != restTone {
		t.Errorf("undamaged should be the rest tone, got %v", Tone(0, 1))
	}
	if Tone(1, 1) != bruisedTone || Tone(5, 1) != bruisedTone {
		t.Errorf("saturated damage should be the bruised tone")
	}
	mid := Tone(0.5, 1)
	if mid.R >= restTone.R || mid.R <= bruisedTone.R {
		t.Errorf("half damage should sit between the tones, got %v", mid)
	}
}

func TestScaleFitsCanvas(t *testing.T) {
	img, err := Render(make([]float64, 4*2*2), tissue.GridResolution{X: 4, Y: 2, Z: 2}, 1)
	if err != nil {
		t.Fatal(err)
	}
	out := Scale(img, 64)
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 64 {
		t.Fatalf("expected 64x64 canvas, got %v", out.Bounds())
	}
	// 4x2 fits as 64x32, centred: the top rows stay transparent.
	if out.NRGBAAt(32, 0).A != 0 {
		t.Errorf("letterbox should be transparent")
	}
	if out.NRGBAAt(32, 32).A == 0 {
		t.Errorf("centre should be painted")
	}
}

func TestEncodeWritesWebP(t *testing.T) {
	res := tissue.GridResolution{X: 3, Y: 3, Z: 3}
	levels := make([]float64, res.Count())
	levels[13] = 1

	var buf bytes.Buffer
	if err := Encode(&buf, levels, res, 1, 32); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b := buf.Bytes()
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		t.Errorf("output is not a WebP container: % x", b[:min(len(b), 16)])
	}
}
