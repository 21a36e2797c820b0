package cli_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/mine"
	"github.com/openmined/mine/cli"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/storage/badger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weights = "QmWmyoMoctfbAaiEs2G46gpeUmhqFRDW6KWo64y5r581Vz"

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func setup(t *testing.T, mutate func(*mine.Config)) {
	t.Helper()

	cfg := mine.DefaultConfig()
	mutate(&cfg)
	cli.SetConfig(cfg)
	cli.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmissionsCmd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ledger, err := badger.NewRepository(dir)
	require.NoError(t, err)
	require.NoError(t, ledger.Save(context.Background(), storage.Submission{
		ModelID:          4,
		WeightsAddress:   weights,
		GradientsAddress: weights,
		TxHash:           "0x01",
		SubmittedAt:      time.Now(),
	}))
	require.NoError(t, ledger.Close())

	setup(t, func(c *mine.Config) {
		c.Daemon.Ledger = storage.TypeBadger
		c.Daemon.LedgerDir = dir
	})

	stdout, stderr := execute(t, cli.NewSubmissionsCmd(), "--limit", "5")
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, weights)
	assert.Contains(t, stdout, "0x01")
}

func TestSubmissionsCmdUsage(t *testing.T) {
	setup(t, func(*mine.Config) {})

	stdout, _ := execute(t, cli.NewSubmissionsCmd(), "extra")
	assert.Contains(t, stdout, "usage")
}

func TestTrainCmd(t *testing.T) {
	cases := []struct {
		desc   string
		args   []string
		stdout string
		stderr string
	}{
		{
			desc:   "missing model id",
			stdout: "usage",
		},
		{
			desc:   "invalid model id",
			args:   []string{"three"},
			stderr: "invalid model id",
		},
		{
			desc:   "invalid config",
			args:   []string{"3"},
			stderr: mine.ErrMissingContract.Error(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			setup(t, func(*mine.Config) {})

			stdout, stderr := execute(t, cli.NewTrainCmd(), tc.args...)
			assert.Contains(t, stdout, tc.stdout)
			assert.Contains(t, stderr, tc.stderr)
		})
	}
}

func TestModelsCmdInvalidConfig(t *testing.T) {
	setup(t, func(c *mine.Config) { c.Trainer.Runtime = "docker" })

	_, stderr := execute(t, cli.NewModelsCmd())
	assert.Contains(t, stderr, mine.ErrInvalidRuntime.Error())
}
