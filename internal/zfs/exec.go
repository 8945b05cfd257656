package zfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Request describes a single invocation of the zfs tool, optionally piped
// into a second process.
type Request struct {
	// Args are appended to the base invocation.
	Args []string

	// Base overrides the executor's base invocation for this call only,
	// e.g. {"ssh", "backup", "/sbin/zfs"} to run the tool remotely.
	Base []string

	// Elevate prepends the sudo wrapper. When Secret is also set it is
	// written to sudo's stdin instead of appearing on the command line.
	Elevate bool
	Secret  string

	// Pipe is the complete argv of a consumer process whose stdin is
	// connected to the stdout of the primary invocation.
	Pipe []string
}

// Runner executes requests. *Executor is the only production implementation.
type Runner interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// Executor runs zfs invocations as subprocesses.
type Executor struct {
	Base    []string
	Sudo    string
	Timeout time.Duration

	log zerolog.Logger
}

// NewExecutor creates an Executor. Empty base and sudo fall back to
// DefaultBinary and DefaultSudo.
func NewExecutor(base []string, sudo string, timeout time.Duration, log zerolog.Logger) *Executor {
	if len(base) == 0 {
		base = []string{DefaultBinary}
	}
	if sudo == "" {
		sudo = DefaultSudo
	}
	return &Executor{
		Base:    append([]string(nil), base...),
		Sudo:    sudo,
		Timeout: timeout,
		log:     log,
	}
}

// Run executes req and returns the buffered stdout of the terminal process.
// A non-zero exit of either stage of a pipeline is reported as a *ToolError
// naming the failing invocation; the consumer's failure takes precedence.
func (e *Executor) Run(ctx context.Context, req Request) ([]byte, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	argv := e.argv(req)

	var stdin io.Reader
	if req.Elevate && req.Secret != "" {
		stdin = strings.NewReader(req.Secret + "\n")
	}

	if len(req.Pipe) == 0 {
		e.log.Debug().Strs("argv", argv).Msg("executing command")
		return e.runSingle(ctx, argv, stdin)
	}

	e.log.Debug().Strs("argv", argv).Strs("pipe", req.Pipe).Msg("executing pipeline")
	return e.runPipeline(ctx, argv, req.Pipe, stdin)
}

// argv builds the full primary command line for req.
func (e *Executor) argv(req Request) []string {
	base := e.Base
	if len(req.Base) > 0 {
		base = req.Base
	}
	if len(base) == 0 {
		base = []string{DefaultBinary}
	}

	var argv []string
	if req.Elevate {
		sudo := e.Sudo
		if sudo == "" {
			sudo = DefaultSudo
		}
		argv = append(argv, sudo)
		if req.Secret != "" {
			argv = append(argv, "--stdin")
		}
	}
	argv = append(argv, base...)
	return append(argv, req.Args...)
}

// waitDelay bounds how long Wait keeps reading from pipes still held open by
// grandchildren, such as an ssh ControlMaster, after the child has exited.
const waitDelay = time.Second

func (e *Executor) command(ctx context.Context, argv []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = waitDelay
	return cmd
}

// exited treats a successful exit whose pipes had to be closed forcibly as
// success.
func exited(err error) error {
	if errors.Is(err, exec.ErrWaitDelay) {
		return nil
	}
	return err
}

func (e *Executor) runSingle(ctx context.Context, argv []string, stdin io.Reader) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := e.command(ctx, argv)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := exited(cmd.Run()); err != nil {
		return stdout.Bytes(), newToolError(argv, stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func (e *Executor) runPipeline(ctx context.Context, argv, pipe []string, stdin io.Reader) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, newToolError(argv, "", err)
	}

	var out, producerErr, consumerErr bytes.Buffer

	producer := e.command(ctx, argv)
	producer.Stdin = stdin
	producer.Stdout = w
	producer.Stderr = &producerErr

	consumer := e.command(ctx, pipe)
	consumer.Stdin = r
	consumer.Stdout = &out
	consumer.Stderr = &consumerErr

	if err := producer.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, newToolError(argv, "", err)
	}

	if err := consumer.Start(); err != nil {
		r.Close()
		w.Close()
		_ = producer.Process.Kill()
		_ = producer.Wait()
		return nil, newToolError(pipe, "", err)
	}

	// Both children hold their own copies of the pipe ends now. Closing ours
	// lets the consumer see EOF and the producer see EPIPE if the consumer
	// exits early.
	w.Close()
	r.Close()

	consumerRun := exited(consumer.Wait())
	producerRun := exited(producer.Wait())

	if consumerRun != nil {
		return out.Bytes(), newToolError(pipe, consumerErr.String(), consumerRun)
	}
	if producerRun != nil {
		return out.Bytes(), newToolError(argv, producerErr.String(), producerRun)
	}
	return out.Bytes(), nil
}
