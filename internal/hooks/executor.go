package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrHookTimeout is returned when a hook runs longer than the executor allows.
var ErrHookTimeout = errors.New("hook timed out")

// Executor runs hooks with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor with the given timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Execute runs h with req on stdin and parses its stdout as a Response.
func (e *Executor) Execute(ctx context.Context, h *Hook, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.Executable)
	cmd.Dir = h.Path

	if req.Config == nil {
		req.Config = h.Manifest.Config
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrHookTimeout, e.timeout)
	}

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("hook execution failed: %w, stderr: %s", err, msg)
		}
		return nil, fmt.Errorf("hook execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, stdout.String())
	}

	return &response, nil
}
