package ffmpeg

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soocke/camrec/domain/media"
	"github.com/soocke/camrec/domain/recording"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func ts(v int64) media.Timestamp { return media.Timestamp{Value: v, Timescale: 600} }

func TestGridRepeats(t *testing.T) {
	origin := ts(0)
	cases := []struct {
		name string
		pts  int64
		next int64
		want int
	}{
		{"first frame", 0, 0, 1},
		{"on cadence", 20, 1, 1},
		{"late by two slots", 60, 1, 3},
		{"early frame dropped", 20, 2, 0},
		{"capped gap", 6000, 1, 30},
	}
	for _, tc := range cases {
		if got := gridRepeats(ts(tc.pts), origin, 30, tc.next, 30); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestSilenceBytes(t *testing.T) {
	format := media.AudioFormat{SampleRate: 48000, Channels: 2}
	origin := ts(0)
	if got := silenceBytes(ts(0), origin, format, 0, 0.05); got != 0 {
		t.Fatalf("no gap expected, got %d", got)
	}
	// One second in with nothing written: one second of stereo silence.
	if got := silenceBytes(ts(600), origin, format, 0, 0.05); got != 48000*4 {
		t.Fatalf("got %d want %d", got, 48000*4)
	}
	// Within tolerance.
	if got := silenceBytes(ts(600), origin, format, 47000*4, 0.05); got != 0 {
		t.Fatalf("small gap should be ignored, got %d", got)
	}
}

func TestBuildArgs(t *testing.T) {
	target := media.Target{Path: "/tmp/out.mov", Type: media.FileTypeMOV}
	video := recording.TrackSettings{Width: 1280, Height: 720, FrameRate: 30}
	audio := &recording.TrackSettings{Audio: media.AudioFormat{SampleRate: 48000, Channels: 1}}
	args, err := buildArgs(Options{}.withDefaults(), target, video, audio)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f rawvideo -pix_fmt rgba -video_size 1280x720 -framerate 30 -i pipe:0",
		"-f s16le -ar 48000 -ac 1 -i pipe:3",
		"-map 0:v -map 1:a",
		"-c:v libx264",
		"-c:a aac",
		"-movflags +faststart",
		"-f mov /tmp/out.mov",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	args, err = buildArgs(Options{}.withDefaults(), media.Target{Path: "x.3gp", Type: media.FileType3GP}, video, nil)
	if err != nil {
		t.Fatalf("build 3gp: %v", err)
	}
	joined = strings.Join(args, " ")
	if strings.Contains(joined, "pipe:3") || strings.Contains(joined, "faststart") {
		t.Fatalf("unexpected audio or faststart args: %s", joined)
	}
	if _, err := buildArgs(Options{}.withDefaults(), target, recording.TrackSettings{Width: 641, Height: 480, FrameRate: 30}, nil); err == nil {
		t.Fatalf("expected odd width to be rejected")
	}
}

func TestMuxerRejectsImages(t *testing.T) {
	var ft *media.ErrUnsupportedFileType
	if _, err := Muxer(media.FileTypeJPG); !errors.As(err, &ft) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	if m, err := Muxer(media.FileTypeM4V); err != nil || m != "mp4" {
		t.Fatalf("m4v muxer = %q, %v", m, err)
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("2.500000\n")
	if err != nil || d != 2500*time.Millisecond {
		t.Fatalf("got %v %v", d, err)
	}
	if _, err := parseDuration("N/A"); err == nil {
		t.Fatalf("expected error for N/A")
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world"))
	if got := b.String(); got != "lo world" {
		t.Fatalf("tail = %q", got)
	}
}

func TestRGBABytesPacksSubImage(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range big.Pix {
		big.Pix[i] = byte(i)
	}
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	out := rgbaBytes(sub, 2, 2)
	if len(out) != 16 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0] != big.Pix[big.PixOffset(1, 1)] || out[8] != big.Pix[big.PixOffset(1, 2)] {
		t.Fatalf("rows not copied from the sub-image")
	}
}

func TestWriter_PhaseErrors(t *testing.T) {
	w := newWriter(Options{}.withDefaults(), media.Target{Path: filepath.Join(t.TempDir(), "a.mp4"), Type: media.FileTypeMP4})
	if err := w.StartWriting(); err == nil {
		t.Fatalf("start without video track should fail")
	}
	if err := w.StartSession(ts(0)); err == nil {
		t.Fatalf("session before writing should fail")
	}
	if err := w.Cancel(); err != nil {
		t.Fatalf("cancel before start: %v", err)
	}
	if _, err := w.AddTrack(media.TrackVideo, recording.TrackSettings{Width: 2, Height: 2, FrameRate: 1}); err == nil {
		t.Fatalf("add track after cancel should fail")
	}
}

// TestWriter_EncodesWithFFmpeg runs a short recording through a real ffmpeg.
func TestWriter_EncodesWithFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	target := media.Target{Path: filepath.Join(t.TempDir(), "clip.mp4"), Type: media.FileTypeMP4}
	f := NewFactory(Options{VideoCodec: "mpeg4", Logger: discardLogger})
	w, err := f.NewWriter(target)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	in, err := w.AddTrack(media.TrackVideo, recording.TrackSettings{Width: 32, Height: 24, FrameRate: 10})
	if err != nil {
		t.Fatalf("add track: %v", err)
	}
	if err := w.StartWriting(); err != nil {
		t.Fatalf("start writing: %v", err)
	}
	if err := w.StartSession(ts(0)); err != nil {
		t.Fatalf("start session: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := int64(0); i < 10; i++ {
		for !in.ReadyForMoreMediaData() {
			time.Sleep(time.Millisecond)
		}
		if err := in.Append(media.FrameSample{Kind: media.TrackVideo, Image: img}, ts(i*60)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Finish(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}
	st, err := os.Stat(target.Path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("expected a non-empty file: %v", err)
	}
}

func TestWriter_EmptySessionLeavesTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	target := media.Target{Path: filepath.Join(t.TempDir(), "empty.mp4"), Type: media.FileTypeMP4}
	w, _ := NewFactory(Options{VideoCodec: "mpeg4", Logger: discardLogger}).NewWriter(target)
	if _, err := w.AddTrack(media.TrackVideo, recording.TrackSettings{Width: 32, Height: 24, FrameRate: 10}); err != nil {
		t.Fatalf("add track: %v", err)
	}
	if err := w.StartWriting(); err != nil {
		t.Fatalf("start writing: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Finish(ctx); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
	if _, err := os.Stat(target.Path); err != nil {
		t.Fatalf("target should exist: %v", err)
	}
}
