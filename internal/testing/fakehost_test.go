package testing

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/tnrctl/internal/platform/ssh"
)

func TestFakeHost_TmuxLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	host := NewFakeHost()
	host.AddScript("/w/run.sh", Script{Output: "hello\n", ExitCode: 3})
	conn := host.NewConn()

	res, err := conn.Run(ctx, "tmux has-session -t =job")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "no server running")

	res, err = conn.Run(ctx, "tmux new-session -d -s job -c /w")
	require.NoError(t, err)
	require.True(t, res.OK())

	res, err = conn.Run(ctx, "tmux new-session -d -s job")
	require.NoError(t, err)
	assert.Contains(t, res.Stderr, "duplicate session")

	line := `X="a b" bash /w/run.sh ; echo "__TNR_""OK_n1__"`
	_, err = conn.Run(ctx, "tmux send-keys -t =job: '"+line+"' C-m")
	require.NoError(t, err)

	launches := host.Launches()
	require.Len(t, launches, 1)
	assert.Equal(t, "/w/run.sh", launches[0].Script)
	assert.Equal(t, "/w", launches[0].Dir)
	assert.Equal(t, map[string]string{"X": "a b"}, launches[0].Env)
	assert.Equal(t, "n1", launches[0].Nonce)

	res, err = conn.Run(ctx, "tmux capture-pane -p -J -t =job: -S -")
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "hello\n")
	assert.Contains(t, res.Stdout, "__TNR_FAIL_n1__:3")

	res, err = conn.Run(ctx, "tmux capture-pane -p -J -t =job: -S -1")
	require.NoError(t, err)
	assert.Equal(t, "__TNR_FAIL_n1__:3\n", res.Stdout)

	res, err = conn.Run(ctx, "tmux list-sessions -F '#{session_name}|#{session_windows}'")
	require.NoError(t, err)
	assert.Equal(t, "job|1\n", res.Stdout)

	res, err = conn.Run(ctx, "tmux kill-session -t =job")
	require.NoError(t, err)
	assert.True(t, res.OK())
	_, ok := host.Session("job")
	assert.False(t, ok)
}

func TestFakeHost_BreakConnections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	host := NewFakeHost()
	old := host.NewConn()

	host.BreakConnections()

	_, err := old.Run(ctx, "true")
	assert.ErrorIs(t, err, ErrConnectionBroken)

	res, err := host.NewConn().Run(ctx, "true")
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestFakeDialer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewFakeDialer(NewFakeHost())

	conn, err := d.Dial(ctx, ssh.Target{Host: "h", User: "u"})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Close(), net.ErrClosed)

	boom := errors.New("boom")
	d.FailWith(boom)
	_, err = d.Dial(ctx, ssh.Target{Host: "h"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, d.Dials())
}
