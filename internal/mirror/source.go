package mirror

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Source reads one value from somewhere outside the process.
type Source[T any] interface {
	Read(ctx context.Context) (T, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc[T any] func(ctx context.Context) (T, error)

// Read implements Source.
func (f SourceFunc[T]) Read(ctx context.Context) (T, error) { return f(ctx) }

// Writer pushes a value back out.
type Writer[T any] interface {
	Write(ctx context.Context, v T) error
}

// WriterFunc adapts a plain function to Writer.
type WriterFunc[T any] func(ctx context.Context, v T) error

// Write implements Writer.
func (f WriterFunc[T]) Write(ctx context.Context, v T) error { return f(ctx, v) }

const defaultCommandTimeout = 5 * time.Second

// Command describes an external process invocation.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// NewCommand builds a Command from an argv slice. It returns the zero Command
// when argv is empty.
func NewCommand(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{Name: argv[0], Args: append([]string(nil), argv[1:]...)}
}

// IsZero reports whether the command has no executable.
func (c Command) IsZero() bool {
	return strings.TrimSpace(c.Name) == ""
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output runs the command and returns its trimmed stdout.
func (c Command) Output(ctx context.Context) (string, error) {
	if c.IsZero() {
		return "", fmt.Errorf("command is empty")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", c, err, msg)
		}
		return "", fmt.Errorf("run %s: %w", c, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes the command and discards its output.
func (c Command) Run(ctx context.Context) error {
	_, err := c.Output(ctx)
	return err
}

// CommandSource reads a value by running a command and parsing its stdout.
func CommandSource[T any](cmd Command, parse func(string) (T, error)) Source[T] {
	return SourceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		out, err := cmd.Output(ctx)
		if err != nil {
			return zero, err
		}
		return parse(out)
	})
}

// FileSource reads a value by reading a file and parsing its contents.
func FileSource[T any](path string, parse func([]byte) (T, error)) Source[T] {
	return SourceFunc[T](func(context.Context) (T, error) {
		var zero T
		data, err := os.ReadFile(path)
		if err != nil {
			return zero, err
		}
		return parse(data)
	})
}
