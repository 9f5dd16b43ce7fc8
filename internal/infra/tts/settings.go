// Package tts provides speech synthesizers: local command-line engines and
// Yandex SpeechKit.
package tts

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrBinaryNotFound is returned when a local engine executable is missing.
	ErrBinaryNotFound = errors.New("tts binary not found")
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("empty text")
	// ErrSynthesisFailed is returned when an engine produced no audio.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// decodeSettings decodes provider settings into cfg, applies defaults and
// validates the result.
func decodeSettings(settings map[string]any, cfg any) error {
	if err := mapstructure.Decode(settings, cfg); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(cfg); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// lookBinary resolves a local engine executable.
func lookBinary(path string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", errors.Wrapf(ErrBinaryNotFound, "%s", path)
	}
	return resolved, nil
}

// runEngine runs a command-line engine with text on stdin and returns stdout.
func runEngine(ctx context.Context, binary string, args []string, text string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = 500 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "%s: %s", binary, strings.TrimSpace(stderr.String())), ErrSynthesisFailed)
	}
	if stdout.Len() == 0 {
		return nil, errors.Wrapf(ErrSynthesisFailed, "%s: no audio output", binary)
	}
	return stdout.Bytes(), nil
}
