package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFplayOutput plays encoded audio through an ffplay subprocess.
type FFplayOutput struct {
	command string
}

// NewFFplayOutput creates an FFplayOutput. command defaults to "ffplay".
func NewFFplayOutput(command string) *FFplayOutput {
	if command == "" {
		command = "ffplay"
	}
	return &FFplayOutput{command: command}
}

// Play feeds the audio to ffplay over stdin and returns when playback
// ends. Cancelling the context kills the subprocess.
func (o *FFplayOutput) Play(ctx context.Context, audio []byte) error {
	cmd := exec.CommandContext(ctx, o.command,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(audio)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("ffplay failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffplay failed: %w", err)
	}
	return nil
}
