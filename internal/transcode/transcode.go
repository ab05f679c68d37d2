// Package transcode converts source media to MP3 with an external ffmpeg process.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// Bitrate is the MP3 encoder bitrate.
	Bitrate = "192k"
	// SampleRate is the output sample rate in Hz.
	SampleRate = "44100"
)

// waitDelay bounds how long output pipes are drained after the process is killed.
const waitDelay = 5 * time.Second

// ErrUnavailable is returned when the encoder binary cannot be located or started.
var ErrUnavailable = errors.New("transcoder unavailable")

// ProcessError reports a non-zero encoder exit.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, stderr)
}

// Transcoder turns arbitrary media bytes into MP3 bytes.
type Transcoder interface {
	Transcode(ctx context.Context, src []byte) ([]byte, error)
}

// FFmpeg spawns one encoder process per call.
type FFmpeg struct {
	binary string
}

// NewFFmpeg returns a transcoder that runs binary, defaulting to "ffmpeg".
func NewFFmpeg(binary string) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// Binary reports the configured executable.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Args returns the encoder arguments: read stdin, drop video, write MP3 to stdout.
func Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "mp3",
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", Bitrate,
		"-ar", SampleRate,
		"pipe:1",
	}
}

// Transcode writes src to the encoder's stdin and returns everything it writes
// to stdout. The context is the only time bound.
func (f *FFmpeg) Transcode(ctx context.Context, src []byte) ([]byte, error) {
	if _, err := exec.LookPath(f.binary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, f.binary, Args()...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("%w: start %s: %v", ErrUnavailable, f.binary, err)
	}
	return stdout.Bytes(), nil
}
