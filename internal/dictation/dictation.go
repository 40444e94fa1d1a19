// Package dictation captures spoken customization text through an external
// speech-to-text command.
package dictation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"replydesk/internal/model"
)

const DefaultTimeout = 30 * time.Second

// Transcriber runs a command that records from the microphone and prints the
// transcript on stdout, e.g. "whisper-rec --lang en".
type Transcriber struct {
	argv    []string
	timeout time.Duration
}

func New(command string, timeout time.Duration) *Transcriber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transcriber{argv: strings.Fields(command), timeout: timeout}
}

// Enabled reports whether a command is configured.
func (t *Transcriber) Enabled() bool { return t != nil && len(t.argv) > 0 }

// Capture runs the command and returns its trimmed output. Any failure,
// including an empty transcript, wraps model.ErrVoiceCapture.
func (t *Transcriber) Capture(ctx context.Context) (string, error) {
	if !t.Enabled() {
		return "", fmt.Errorf("%w: no dictation command configured", model.ErrVoiceCapture)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.argv[0], t.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "timed out"
		}
		return "", fmt.Errorf("%w: %s: %v %s", model.ErrVoiceCapture, t.argv[0], err, msg)
	}
	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", model.ErrVoiceCapture)
	}
	return text, nil
}
