package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		versionShort = false
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")
	assert.True(t, strings.HasPrefix(out, "amora dev (none, built unknown, go"))

	out = runRoot(t, "version", "--short")
	assert.Equal(t, "dev\n", out)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestMigrate_RequiresApp(t *testing.T) {
	SetApp(nil)
	rootCmd.SetArgs([]string{"migrate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, ErrNoDatabase)
}
