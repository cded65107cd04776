package scaling

import (
	"errors"
	"testing"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		in         Size
		frame      Size
		keepAspect bool
		want       Result
	}{
		{
			name:       "SNES in HD keeps aspect",
			in:         Size{Width: 256, Height: 224},
			frame:      FrameHD,
			keepAspect: true,
			want:       Result{Out: Size{1024, 896}, ScaleX: 4, ScaleY: 4, OffsetX: 448, OffsetY: 92},
		},
		{
			name:  "SNES in HD per axis",
			in:    Size{Width: 256, Height: 224},
			frame: FrameHD,
			want:  Result{Out: Size{1792, 896}, ScaleX: 7, ScaleY: 4, OffsetX: 64, OffsetY: 92},
		},
		{
			name:       "240p in UHD",
			in:         Size{Width: 320, Height: 240},
			frame:      FrameUHD,
			keepAspect: true,
			want:       Result{Out: Size{2880, 2160}, ScaleX: 9, ScaleY: 9, OffsetX: 480, OffsetY: 0},
		},
		{
			name:       "exact fit",
			in:         Size{Width: 640, Height: 360},
			frame:      FrameHD,
			keepAspect: true,
			want:       Result{Out: Size{1920, 1080}, ScaleX: 3, ScaleY: 3},
		},
		{
			name:       "larger than frame stays at 1",
			in:         Size{Width: 2560, Height: 1440},
			frame:      FrameHD,
			keepAspect: true,
			want:       Result{Out: Size{2560, 1440}, ScaleX: 1, ScaleY: 1, OffsetX: -320, OffsetY: -180},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(tt.in, tt.frame, tt.keepAspect)
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			tt.want.In = tt.in
			tt.want.Frame = tt.frame
			if got != tt.want {
				t.Errorf("Fit() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFit_InvalidSize(t *testing.T) {
	for _, in := range []Size{{Width: 0, Height: 224}, {Width: 256, Height: -1}} {
		if _, err := Fit(in, FrameHD, true); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Fit(%s) error = %v, want ErrInvalidSize", in, err)
		}
	}
}
