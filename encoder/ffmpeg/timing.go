package ffmpeg

import (
	"math"

	"github.com/soocke/camrec/domain/media"
)

// gridRepeats returns how many times a frame at pts is written so the
// constant-rate output keeps pace with capture time. next is the index of
// the next unwritten output frame. A frame that maps before next is dropped
// (0); a frame after a gap fills the gap with copies, at most maxRepeat.
func gridRepeats(pts, origin media.Timestamp, fps int, next int64, maxRepeat int) int {
	if fps <= 0 {
		return 1
	}
	slot := int64(math.Round((pts.Seconds() - origin.Seconds()) * float64(fps)))
	if slot < next {
		return 0
	}
	n := slot - next + 1
	if n > int64(maxRepeat) {
		n = int64(maxRepeat)
	}
	return int(n)
}

// silenceBytes returns the PCM bytes of silence to insert before a sample at
// pts so the audio track stays aligned with capture time. written is the
// number of PCM bytes already written. Gaps shorter than tolerance are
// ignored.
func silenceBytes(pts, origin media.Timestamp, format media.AudioFormat, written int64, tolerance float64) int64 {
	frameBytes := int64(2 * format.Channels)
	if frameBytes == 0 || format.SampleRate <= 0 {
		return 0
	}
	want := (pts.Seconds() - origin.Seconds()) * float64(format.SampleRate)
	have := float64(written / frameBytes)
	gap := want - have
	if gap <= tolerance*float64(format.SampleRate) {
		return 0
	}
	return int64(gap) * frameBytes
}
