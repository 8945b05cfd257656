package zfs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorRunSingle(t *testing.T) {
	tool := writeScript(t, "zfs", `echo "args: $*"`)
	e := NewExecutor([]string{tool}, "", 0, zerolog.Nop())

	out, err := e.Run(context.Background(), Request{Args: []string{"list", "-H"}})
	require.NoError(t, err)
	assert.Equal(t, "args: list -H\n", string(out))
}

func TestExecutorRunFailure(t *testing.T) {
	tool := writeScript(t, "zfs", `echo "dataset does not exist" >&2; exit 2`)
	e := NewExecutor([]string{tool}, "", 0, zerolog.Nop())

	_, err := e.Run(context.Background(), Request{Args: []string{"destroy", "tank@x"}})
	require.Error(t, err)

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []string{tool, "destroy", "tank@x"}, te.Command)
	assert.Equal(t, 2, te.ExitCode)
	assert.Contains(t, te.Stderr, "dataset does not exist")
	assert.Contains(t, err.Error(), "failed to execute")
}

func TestExecutorMissingBinary(t *testing.T) {
	e := NewExecutor([]string{"/nonexistent/zfs"}, "", 0, zerolog.Nop())

	_, err := e.Run(context.Background(), Request{Args: []string{"list"}})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, -1, te.ExitCode)
}

func TestExecutorBaseOverride(t *testing.T) {
	local := writeScript(t, "zfs", `echo local`)
	remote := writeScript(t, "ssh", `echo "remote: $*"`)
	e := NewExecutor([]string{local}, "", 0, zerolog.Nop())

	out, err := e.Run(context.Background(), Request{
		Base: []string{remote, "backup", "/sbin/zfs"},
		Args: []string{"list", "-H", "-t", "snapshot"},
	})
	require.NoError(t, err)
	assert.Equal(t, "remote: backup /sbin/zfs list -H -t snapshot\n", string(out))
}

func TestExecutorElevation(t *testing.T) {
	sudo := writeScript(t, "sudo", `read pw
echo "secret=$pw"
echo "args=$*"`)

	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{
			name:   "without secret",
			secret: "",
			want:   "secret=\nargs=/sbin/zfs list -H\n",
		},
		{
			name:   "secret passed on stdin",
			secret: "hunter2",
			want:   "secret=hunter2\nargs=--stdin /sbin/zfs list -H\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor([]string{"/sbin/zfs"}, sudo, 0, zerolog.Nop())
			out, err := e.Run(context.Background(), Request{
				Args:    []string{"list", "-H"},
				Elevate: true,
				Secret:  tt.secret,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestExecutorSecretNotInError(t *testing.T) {
	sudo := writeScript(t, "sudo", `cat >/dev/null; echo "sorry, try again" >&2; exit 1`)
	e := NewExecutor([]string{"/sbin/zfs"}, sudo, 0, zerolog.Nop())

	_, err := e.Run(context.Background(), Request{
		Args:    []string{"list"},
		Elevate: true,
		Secret:  "hunter2",
	})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.NotContains(t, te.Command, "hunter2")
}

func TestExecutorSecretIgnoredWithoutElevation(t *testing.T) {
	tool := writeScript(t, "zfs", `if read line; then echo "stdin=$line"; else echo "no stdin"; fi`)
	e := NewExecutor([]string{tool}, "", 0, zerolog.Nop())

	out, err := e.Run(context.Background(), Request{Args: []string{"list"}, Secret: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "no stdin\n", string(out))
}

func TestExecutorPipeline(t *testing.T) {
	producer := writeScript(t, "zfs", `echo "stream for $*"`)
	consumer := writeScript(t, "recv", `read line; echo "got [$line] args [$*]"`)
	e := NewExecutor([]string{producer}, "", 0, zerolog.Nop())

	out, err := e.Run(context.Background(), Request{
		Args: []string{"send", "tank@a"},
		Pipe: []string{consumer, "receive", "backup/tank"},
	})
	require.NoError(t, err)
	assert.Equal(t, "got [stream for send tank@a] args [receive backup/tank]\n", string(out))
}

func TestExecutorPipelineFailures(t *testing.T) {
	okProducer := writeScript(t, "zfs-ok", `echo data`)
	badProducer := writeScript(t, "zfs-bad", `echo "cannot open snapshot" >&2; exit 1`)
	okConsumer := writeScript(t, "recv-ok", `cat >/dev/null`)
	badConsumer := writeScript(t, "recv-bad", `cat >/dev/null; echo "destination has been modified" >&2; exit 1`)

	tests := []struct {
		name        string
		producer    string
		consumer    string
		wantCommand string
		wantStderr  string
	}{
		{
			name:        "consumer fails",
			producer:    okProducer,
			consumer:    badConsumer,
			wantCommand: badConsumer,
			wantStderr:  "destination has been modified",
		},
		{
			name:        "producer fails",
			producer:    badProducer,
			consumer:    okConsumer,
			wantCommand: badProducer,
			wantStderr:  "cannot open snapshot",
		},
		{
			name:        "both fail reports consumer",
			producer:    badProducer,
			consumer:    badConsumer,
			wantCommand: badConsumer,
			wantStderr:  "destination has been modified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor([]string{tt.producer}, "", 0, zerolog.Nop())
			_, err := e.Run(context.Background(), Request{
				Args: []string{"send", "tank@a"},
				Pipe: []string{tt.consumer, "receive", "backup/tank"},
			})
			require.Error(t, err)

			var te *ToolError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantCommand, te.Command[0])
			assert.Contains(t, te.Stderr, tt.wantStderr)
		})
	}
}

func TestExecutorPipelineConsumerMissing(t *testing.T) {
	producer := writeScript(t, "zfs", `echo data`)
	e := NewExecutor([]string{producer}, "", 0, zerolog.Nop())

	_, err := e.Run(context.Background(), Request{
		Args: []string{"send", "tank@a"},
		Pipe: []string{"/nonexistent/ssh", "receive", "backup/tank"},
	})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "/nonexistent/ssh", te.Command[0])
}

func TestExecutorTimeout(t *testing.T) {
	tool := writeScript(t, "zfs", `exec sleep 5`)
	e := NewExecutor([]string{tool}, "", 200*time.Millisecond, zerolog.Nop())

	start := time.Now()
	_, err := e.Run(context.Background(), Request{Args: []string{"list"}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecutorGrandchildHoldingPipes(t *testing.T) {
	producer := writeScript(t, "zfs", `echo data`)
	consumer := writeScript(t, "ssh", `cat >/dev/null; echo received; sleep 10 &`)
	tool := writeScript(t, "zfs-list", `echo listed; sleep 10 &`)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"single", Request{Base: []string{tool}}, "listed"},
		{"pipeline", Request{Args: []string{"send"}, Pipe: []string{consumer}}, "received"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor([]string{producer}, "", 0, zerolog.Nop())

			start := time.Now()
			out, err := e.Run(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.want)
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}
