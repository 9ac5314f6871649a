package onnx

import (
	"bytes"
	"testing"
)

func TestDepthField(t *testing.T) {
	tests := []struct {
		name       string
		data       []float32
		inverse    bool
		outW, outH int
		want       []byte
	}{
		{"stretch", []float32{-2, 0, 2}, false, 3, 1, []byte{0, 127, 255}},
		{"inverse", []float32{-2, 0, 2}, true, 3, 1, []byte{255, 127, 0}},
		{"flat", []float32{4, 4, 4}, false, 3, 1, []byte{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := depthField(len(tt.data), 1, tt.data, tt.inverse, tt.outW, tt.outH)
			if !bytes.Equal(got.Pix, tt.want) {
				t.Errorf("depthField = %v, want %v", got.Pix, tt.want)
			}
		})
	}
}

func TestDepthFieldScales(t *testing.T) {
	data := make([]float32, 4*4)
	for i := range data {
		data[i] = float32(i % 4)
	}
	got := depthField(4, 4, data, false, 16, 8)
	if got.Width != 16 || got.Height != 8 {
		t.Fatalf("size = %dx%d, want 16x8", got.Width, got.Height)
	}
	for y := 0; y < got.Height; y++ {
		row := got.Pix[y*got.Width : (y+1)*got.Width]
		for x := 1; x < len(row); x++ {
			if int(row[x])+2 < int(row[x-1]) {
				t.Fatalf("row %d not monotonic at %d: %v", y, x, row)
			}
		}
	}
}
