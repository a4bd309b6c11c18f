package credits

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/amora-chat/amora/internal/app"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/pkg/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	creditsUser = ""
	creditsAmount = 0
	creditsReason = ""
	historyLimit = 20
}

func newTestApp(t *testing.T) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:     "test",
		SQLitePath: filepath.Join(t.TempDir(), "amora.db"),
	}
	container, err := app.NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(container.Close)

	cli.SetApp(cli.NewApp(container.BillingService, container.Adapters))
	t.Cleanup(func() { cli.SetApp(nil) })
}

func run(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, []string{})
	return output.String(), err
}

func TestCreditsCommands_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	for _, cmd := range []*cobra.Command{grantCmd, debitCmd, refundCmd, balanceCmd, historyCmd} {
		_, err := run(t, cmd)
		assert.ErrorIs(t, err, cli.ErrNoDatabase, cmd.Name())
	}
}

func TestCreditsCommands_Flow(t *testing.T) {
	resetFlags()
	newTestApp(t)
	creditsUser = uuid.NewString()

	creditsAmount = 50
	creditsReason = "manual:ticket-812"
	out, err := run(t, grantCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 50")

	creditsAmount = 20
	creditsReason = "chat:msg"
	out, err = run(t, debitCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 30")

	creditsAmount = 5
	creditsReason = ""
	out, err = run(t, refundCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 35")

	out, err = run(t, balanceCmd)
	require.NoError(t, err)
	assert.Equal(t, "Balance: 35\n", out)

	out, err = run(t, historyCmd)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], domain.ReasonRefund)
	assert.Contains(t, out, "manual:ticket-812")
}

func TestCreditsCommands_Rejections(t *testing.T) {
	resetFlags()
	newTestApp(t)

	_, err := run(t, balanceCmd)
	assert.ErrorContains(t, err, "--user is required")

	creditsUser = uuid.NewString()
	creditsAmount = 10
	_, err = run(t, debitCmd)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	creditsAmount = 0
	_, err = run(t, grantCmd)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	out, err := run(t, historyCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "No credit history.")
}
