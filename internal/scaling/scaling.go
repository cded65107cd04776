// Package scaling computes integer ("pixel double") scale factors for
// fitting a low-resolution source into an HD or UHD output frame.
//
// Scalers such as the RetroTINK 4K take a per-axis integer multiplier and
// an offset from the frame edge; Fit produces both.
package scaling

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned for a source with a non-positive dimension.
var ErrInvalidSize = errors.New("scaling: width and height must be positive")

// Size is a resolution in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the size as "W x H".
func (s Size) String() string {
	return fmt.Sprintf("%d x %d", s.Width, s.Height)
}

// Output frames.
var (
	FrameHD  = Size{Width: 1920, Height: 1080}
	FrameUHD = Size{Width: 3840, Height: 2160}
)

// Result is an integer scaling of In within Frame.
//
// OffsetX and OffsetY are the margins from the frame edge to the scaled
// image. They are negative when the source is already larger than the frame.
type Result struct {
	In      Size `json:"in"`
	Frame   Size `json:"frame"`
	Out     Size `json:"out"`
	ScaleX  int  `json:"scale_x"`
	ScaleY  int  `json:"scale_y"`
	OffsetX int  `json:"offset_x"`
	OffsetY int  `json:"offset_y"`
}

// Fit finds the largest integer multiplier per axis that keeps in within
// frame. The multiplier never drops below 1. With keepAspect both axes use
// the smaller of the two multipliers.
func Fit(in, frame Size, keepAspect bool) (Result, error) {
	if in.Width <= 0 || in.Height <= 0 {
		return Result{}, fmt.Errorf("%w: got %s", ErrInvalidSize, in)
	}

	sx := max(1, frame.Width/in.Width)
	sy := max(1, frame.Height/in.Height)
	if keepAspect {
		sx = min(sx, sy)
		sy = sx
	}

	out := Size{Width: in.Width * sx, Height: in.Height * sy}
	return Result{
		In:      in,
		Frame:   frame,
		Out:     out,
		ScaleX:  sx,
		ScaleY:  sy,
		OffsetX: (frame.Width - out.Width) / 2,
		OffsetY: (frame.Height - out.Height) / 2,
	}, nil
}
