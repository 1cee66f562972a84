package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Result captures one external command invocation.
type Result struct {
	Name     string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Diagnostic returns the tail of stderr, falling back to stdout, for error
// messages shown to users.
func (r Result) Diagnostic() string {
	out := strings.TrimSpace(r.Stderr)
	if out == "" {
		out = strings.TrimSpace(r.Stdout)
	}
	const max = 2000
	if len(out) > max {
		cut := len(out) - max
		for cut < len(out) && !utf8.RuneStart(out[cut]) {
			cut++
		}
		out = "..." + out[cut:]
	}
	return out
}

// Runner abstracts process execution so tools can be faked in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Env    []string
	Logger *logrus.Entry
}

func NewExecRunner(logger *logrus.Entry, env ...string) *ExecRunner {
	return &ExecRunner{Env: env, Logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"command": name,
			"args":    args,
		}).Debug("Executing command")
	}

	err := cmd.Run()
	result := Result{
		Name:   name,
		Args:   args,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if r.Logger != nil {
			r.Logger.WithError(err).WithFields(logrus.Fields{
				"command":  name,
				"exitCode": result.ExitCode,
				"stderr":   result.Diagnostic(),
			}).Debug("Command failed")
		}
		return result, err
	}

	return result, nil
}
