package billing

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amora-chat/amora/adapter/cli"
	"github.com/amora-chat/amora/internal/app"
	"github.com/amora-chat/amora/pkg/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags() {
	statusUser = ""
	entitlementUser = ""
	entitlementSet = false
	entitlementRecompute = false
	entitlementCmd.Flags().Lookup("set").Changed = false
	replayProvider = "web"
	replayEventPath = ""
}

func newTestApp(t *testing.T) *cli.App {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
products:
  - id: amora_credits_50
    platform: mobile
    credit_amount: 50
`), 0o600))

	cfg := &config.Config{
		AppEnv:              "test",
		SQLitePath:          filepath.Join(dir, "amora.db"),
		CatalogFile:         catalogPath,
		DeliveryReceiptTTL:  time.Hour,
		BonusCreditsWeekly:  10,
		BonusCreditsMonthly: 30,
		BonusCreditsYearly:  400,
	}
	container, err := app.NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(container.Close)

	a := cli.NewApp(container.BillingService, container.Adapters)
	cli.SetApp(a)
	t.Cleanup(func() { cli.SetApp(nil) })
	return a
}

func run(t *testing.T, cmd *cobra.Command) (string, error) {
	t.Helper()
	var output strings.Builder
	cmd.SetContext(context.Background())
	cmd.SetOut(&output)
	err := cmd.RunE(cmd, []string{})
	return output.String(), err
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCommands_NoApp(t *testing.T) {
	resetFlags()
	cli.SetApp(nil)

	for _, cmd := range []*cobra.Command{statusCmd, entitlementCmd, replayCmd} {
		_, err := run(t, cmd)
		assert.ErrorIs(t, err, cli.ErrNoDatabase, cmd.Name())
	}
}

func TestStatusCmd_RequiresUser(t *testing.T) {
	resetFlags()
	newTestApp(t)

	_, err := run(t, statusCmd)
	assert.ErrorContains(t, err, "--user is required")

	statusUser = "not-a-uuid"
	_, err = run(t, statusCmd)
	assert.ErrorContains(t, err, "invalid user id")
}

func TestReplayAndStatus(t *testing.T) {
	resetFlags()
	newTestApp(t)
	userID := uuid.New()

	replayProvider = "mobile"
	replayEventPath = writePayload(t, `{"event":{"id":"evt_1","type":"INITIAL_PURCHASE",
		"app_user_id":"`+userID.String()+`","original_transaction_id":"orig_cli",
		"product_id":"amora_monthly","period_type":"NORMAL",
		"purchased_at_ms":1704067200000,"expiration_at_ms":1706745600000}}`)

	out, err := run(t, replayCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Outcome: processed")
	assert.Contains(t, out, "Premium: true")
	assert.Contains(t, out, "Credits granted: 30")

	out, err = run(t, replayCmd)
	require.NoError(t, err)
	assert.NotContains(t, out, "Credits granted", "replaying the same event grants nothing")

	statusUser = userID.String()
	out, err = run(t, statusCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Premium: true")
	assert.Contains(t, out, "mobile/orig_cli: active")
}

func TestReplayCmd_Errors(t *testing.T) {
	resetFlags()
	newTestApp(t)

	_, err := run(t, replayCmd)
	assert.ErrorContains(t, err, "--event is required")

	replayProvider = "paypal"
	replayEventPath = writePayload(t, `{}`)
	_, err = run(t, replayCmd)
	assert.ErrorContains(t, err, "available")

	replayProvider = "mobile"
	replayEventPath = writePayload(t, `{"event":{"id":"evt_t","type":"TEST"}}`)
	out, err := run(t, replayCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored")

	replayEventPath = filepath.Join(t.TempDir(), "missing.json")
	_, err = run(t, replayCmd)
	assert.ErrorContains(t, err, "read event payload")
}

func TestEntitlementCmd(t *testing.T) {
	resetFlags()
	newTestApp(t)
	userID := uuid.New()
	entitlementUser = userID.String()

	out, err := run(t, entitlementCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "premium: false")

	require.NoError(t, entitlementCmd.Flags().Set("set", "true"))
	out, err = run(t, entitlementCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "premium: true")

	entitlementCmd.Flags().Lookup("set").Changed = false
	entitlementRecompute = true
	out, err = run(t, entitlementCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "premium: false", "no active subscription backs the override")

	require.NoError(t, entitlementCmd.Flags().Set("set", "true"))
	_, err = run(t, entitlementCmd)
	assert.ErrorContains(t, err, "mutually exclusive")
}
