package logutil

import (
	"path/filepath"
	"testing"

	"github.com/pingcap/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerAndSetLogLevel(t *testing.T) {
	cfg := &Config{Level: "WARN", File: filepath.Join(t.TempDir(), "uniactor.log")}
	require.NoError(t, cfg.Adjust())
	require.Equal(t, "warn", cfg.Level)
	require.Equal(t, "text", cfg.Format)
	require.NoError(t, InitLogger(cfg))
	require.Equal(t, zapcore.WarnLevel, log.GetLevel())

	require.NoError(t, SetLogLevel("info"))
	require.Equal(t, zapcore.InfoLevel, log.GetLevel())
	require.NoError(t, SetLogLevel("info"))

	err := SetLogLevel("badlevel")
	require.True(t, ErrInvalidLogLevel.Equal(err))
}

func TestAdjustRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Adjust())
	cfg.Level = "verbose"
	require.True(t, ErrInvalidLogLevel.Equal(cfg.Adjust()))
}
