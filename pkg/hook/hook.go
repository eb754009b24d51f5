// Package hook runs a user supplied command after each successful
// download.
package hook

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultTimeout = time.Minute

// Placeholder tokens substituted into the command string.
const (
	TokenPath = "{path}" // full output path of the downloaded file
	TokenBase = "{base}" // base filename without extension
)

type Hook struct {
	Command string
	Timeout time.Duration
}

func New(command string) *Hook {
	if command == "" {
		return nil
	}

	return &Hook{Command: command, Timeout: DefaultTimeout}
}

// Run substitutes the placeholder tokens and executes the command through
// the shell, blocking until it finishes. The command's output is not
// inspected, only its exit status.
func (h *Hook) Run(ctx context.Context, outputPath string) error {
	if h == nil {
		return nil
	}

	base := filepath.Base(outputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	command := strings.NewReplacer(
		TokenPath, outputPath,
		TokenBase, base,
	).Replace(h.Command)

	timeout := h.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debugf("running hook: %s", command)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "hook failed: %s", string(output))
	}

	return nil
}
