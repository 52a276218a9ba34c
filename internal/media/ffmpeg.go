package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpegDevice captures microphone PCM using an ffmpeg subprocess.
type FFmpegDevice struct {
	command string
}

// NewFFmpegDevice creates an FFmpegDevice. command defaults to "ffmpeg".
func NewFFmpegDevice(command string) *FFmpegDevice {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegDevice{command: command}
}

// Start launches ffmpeg and waits long enough to catch immediate exits
// (missing device, denied access) before declaring the session live.
func (d *FFmpegDevice) Start(ctx context.Context, cfg CaptureConfig) (DeviceSession, error) {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if isPermissionFailure(detail) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, detail)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %s", ErrDeviceUnavailable, detail)
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started", ErrDeviceUnavailable)
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func isPermissionFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "not authorized")
}

type ffmpegSession struct {
	stdout io.ReadCloser

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err := <-s.waitErr:
			s.stopErr = err
		case <-time.After(2 * time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			s.stopErr = <-s.waitErr
		}

		_ = s.stdout.Close()
	})
	return s.stopErr
}
