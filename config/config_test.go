package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"uniactor/mailbox"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uniactor.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
persist-dir = "/tmp/wal"

[log]
level = "debug"

[mailbox]
capacity = 128
policy = "block"

[remote]
listen-addr = "127.0.0.1:0"
breaker-open-for = "2s"

[rate-limit]
qps = 0.5
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/wal", c.PersistDir)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, "text", c.Log.Format)
	require.Equal(t, uint64(128), c.Mailbox.Capacity)
	require.Equal(t, uint64(1024), c.Mailbox.UrgentCapacity)
	require.Equal(t, mailbox.BackpressureBlock, c.Mailbox.Options().Policy)
	require.Equal(t, "127.0.0.1:0", c.Remote.ListenAddr)
	require.Equal(t, Duration(2*time.Second), c.Remote.BreakerOpenFor)
	require.Equal(t, Duration(5*time.Second), c.Remote.DeliverTimeout)
	require.Equal(t, 1, c.RateLimit.Burst)
}

func TestLoadUnknownItem(t *testing.T) {
	path := writeConfig(t, `
[mailbox]
capacity = 1
colour = "blue"
`)
	_, err := Load(path)
	require.True(t, ErrConfigUnknownItem.Equal(err))
	require.Contains(t, err.Error(), "mailbox.colour")
}

func TestAdjustValidation(t *testing.T) {
	c := Default()
	c.Mailbox.Policy = "spill"
	require.True(t, ErrConfigInvalid.Equal(c.Adjust()))

	c = Default()
	c.RateLimit.QPS = -1
	require.True(t, ErrConfigInvalid.Equal(c.Adjust()))

	c = &Config{}
	require.NoError(t, c.Adjust())
	require.NotNil(t, c.Log)
	require.Equal(t, "expand", c.Mailbox.Policy)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "[remote]\nbreaker-open-for = \"soon\"\n")
	_, err := Load(path)
	require.Error(t, err)
}
