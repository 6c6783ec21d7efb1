package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

// audioFD is the descriptor the child reads PCM from (first ExtraFiles entry).
const audioFD = 3

// muxers maps allow-listed video containers to ffmpeg muxer names.
var muxers = map[string]string{
	"mov": "mov",
	"mp4": "mp4",
	"m4v": "mp4",
	"3gp": "3gp",
	"3g2": "3g2",
}

// Muxer returns the ffmpeg muxer for a video file type.
func Muxer(ft media.FileType) (string, error) {
	m, ok := muxers[ft.Name]
	if !ok || !ft.IsVideo() {
		return "", &media.ErrUnsupportedFileType{Name: ft.Name, Want: media.KindVideo}
	}
	return m, nil
}

// buildArgs returns the ffmpeg arguments for one recording. audio is nil
// when no audio track was declared.
func buildArgs(opts Options, target media.Target, video recording.TrackSettings, audio *recording.TrackSettings) ([]string, error) {
	muxer, err := Muxer(target.Type)
	if err != nil {
		return nil, err
	}
	if video.Width <= 0 || video.Height <= 0 || video.Width%2 != 0 || video.Height%2 != 0 {
		return nil, fmt.Errorf("video size %dx%d must be positive and even", video.Width, video.Height)
	}
	if video.FrameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", video.FrameRate)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", video.Width, video.Height),
		"-framerate", strconv.Itoa(video.FrameRate),
		"-i", "pipe:0",
	}
	if audio != nil {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(audio.Audio.SampleRate),
			"-ac", strconv.Itoa(audio.Audio.Channels),
			"-i", "pipe:"+strconv.Itoa(audioFD),
		)
	}
	args = append(args, "-map", "0:v")
	if audio != nil {
		args = append(args, "-map", "1:a")
	}
	args = append(args, "-c:v", opts.VideoCodec)
	if opts.Preset != "" {
		args = append(args, "-preset", opts.Preset)
	}
	if opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	args = append(args, "-pix_fmt", "yuv420p", "-r", strconv.Itoa(video.FrameRate))
	if audio != nil {
		args = append(args, "-c:a", opts.AudioCodec, "-b:a", opts.AudioBitrate)
	}
	switch muxer {
	case "mov", "mp4":
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-f", muxer, target.Path)
	return args, nil
}
