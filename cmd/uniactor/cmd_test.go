package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"uniactor/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCmdRoot()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types")
	require.NoError(t, err)
	require.Contains(t, out, "@i32\tint32\n")
	require.Contains(t, out, "@<>\t")
}

func TestEncodeDecode(t *testing.T) {
	hexOut, err := execute(t, "encode", `@str ( "hello" )`)
	require.NoError(t, err)
	text, err := execute(t, "decode", strings.TrimSpace(hexOut))
	require.NoError(t, err)
	require.Equal(t, "@str ( \"hello\" )\n", text)

	_, err = execute(t, "decode", "not-hex")
	require.Error(t, err)
	_, err = execute(t, "encode", "@nope ( 1 )")
	require.Error(t, err)
}

func TestEcho(t *testing.T) {
	out, err := execute(t, "echo", "--times", "2", "hi", "there")
	require.NoError(t, err)
	line := `@<> ( { @str ( "hi" ), @str ( "there" ) } )` + "\n"
	require.Equal(t, line+line, out)
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	require.NoError(t, os.WriteFile(good, []byte("[mailbox]\npolicy = \"block\"\n[rate-limit]\nqps = 1000.0\n"), 0o644))
	_, err := execute(t, "--config", good, "echo", "x")
	require.NoError(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("unknown-key = 1\n"), 0o644))
	_, err = execute(t, "--config", bad, "types")
	require.True(t, config.ErrConfigUnknownItem.Equal(err), "%v", err)

	_, err = execute(t, "--log-level", "loud", "types")
	require.Error(t, err)
}
