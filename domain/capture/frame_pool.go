package capture

import (
	"image"
	"sync"
)

// Reusable frame pool. Video frames are handed to the frame delivery queue
// and recycled once every consumer has returned, so steady-state capture
// reuses a handful of large RGBA backing slices instead of allocating one
// per frame. Consumers that need pixels beyond the delivery callback must
// copy them.

var framePool sync.Pool // stores *image.RGBA

// acquireFrame returns a reusable w x h RGBA image anchored at the origin.
// Pix length is exactly w*h*4 and Stride is w*4.
func acquireFrame(w, h int) *image.RGBA {
	rect := image.Rect(0, 0, w, h)
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		img = &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	} else {
		img.Stride = w * 4
		img.Rect = rect
		img.Pix = img.Pix[:needed]
	}
	return img
}

// RecycleFrame returns the frame to the pool. The frame must no longer be
// accessed by the caller.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}
