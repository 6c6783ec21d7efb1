package capture

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/soocke/camrec/domain/media"
)

// StillWriter scales captured frames and writes them as image files.
type StillWriter struct {
	Dir     string
	Type    media.FileType
	Height  int
	Quality int
}

// Prepare returns a scaled copy of frame that does not share its pixels.
func (w StillWriter) Prepare(frame image.Image) *image.NRGBA {
	if w.Height > 0 && frame.Bounds().Dy() != w.Height {
		return imaging.Resize(frame, 0, w.Height, imaging.Lanczos)
	}
	return imaging.Clone(frame)
}

// Save writes img to a fresh image target.
func (w StillWriter) Save(img image.Image) (media.Target, error) {
	target, err := media.NewTarget(w.Dir, w.Type, media.KindImage)
	if err != nil {
		return media.Target{}, err
	}
	var opts []imaging.EncodeOption
	switch w.Type {
	case media.FileTypeJPG:
		q := w.Quality
		if q <= 0 {
			q = 90
		}
		opts = append(opts, imaging.JPEGQuality(q))
	case media.FileTypeTIFF:
	default:
		return media.Target{}, fmt.Errorf("encode %s: %w", w.Type, ErrUnsupported)
	}
	if err := imaging.Save(img, target.Path, opts...); err != nil {
		return media.Target{}, fmt.Errorf("save still %s: %w", target.Path, err)
	}
	return target, nil
}
