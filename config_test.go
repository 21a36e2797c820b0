package mine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/mine"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/cron"
	"github.com/openmined/mine/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x7fde0e7d2a7a9c1b9c0e8d0bd1d6ec3e8e6a7b01"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mine.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := mine.LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, miner.AutoAddress, cfg.Miner.Address)
	assert.Equal(t, mine.RuntimeHost, cfg.Trainer.Runtime)
	assert.Equal(t, trainer.DefaultFiles, cfg.Workspace.Files)
	assert.NotEmpty(t, cfg.InstanceName)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
debug = true

[miner]
contract = "`+contract+`"
ethereum_url = "http://geth:8545"

[trainer]
command = "/usr/local/bin/train"
args = ["gradient", "--fast"]

[daemon]
ledger = "badger"
`)

	cfg, err := mine.LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, contract, cfg.Miner.Contract)
	assert.Equal(t, "http://geth:8545", cfg.Miner.EthereumURL)
	assert.Equal(t, "/usr/local/bin/train", cfg.Trainer.Command)
	assert.Equal(t, []string{"gradient", "--fast"}, cfg.Trainer.Args)
	assert.Equal(t, "badger", cfg.Daemon.Ledger)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, miner.AutoAddress, cfg.Miner.Address)
	assert.Equal(t, "http://localhost:5001", cfg.IPFS.URL)
	assert.Equal(t, 30*time.Second, cfg.Daemon.PollInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[miner]
contract = "`+contract+`"

[ipfs]
url = "http://file:5001"
`)
	t.Setenv("MINE_IPFS_URL", "http://env:5001")
	t.Setenv("MINE_DAEMON_POLL_INTERVAL", "5s")
	t.Setenv("MINE_HTTP_PORT", "9000")
	t.Setenv("MINE_ENRICHMENT_ENABLED", "true")
	t.Setenv("MINE_TRAINER_REGISTRY_USERNAME", "miner")
	t.Setenv("MINE_TRAINER_REGISTRY_PLAIN_HTTP", "true")

	cfg, err := mine.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env:5001", cfg.IPFS.URL)
	assert.Equal(t, 5*time.Second, cfg.Daemon.PollInterval)
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.True(t, cfg.Enrichment.Enabled)
	assert.Equal(t, "miner", cfg.Trainer.Registry.Username)
	assert.True(t, cfg.Trainer.Registry.PlainHTTP)
	assert.Equal(t, contract, cfg.Miner.Contract)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	path := writeConfig(t, "[miner\ncontract = ")

	_, err := mine.LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() mine.Config {
		cfg := mine.DefaultConfig()
		cfg.Miner.Contract = contract

		return cfg
	}

	cases := []struct {
		desc   string
		mutate func(*mine.Config)
		err    error
	}{
		{
			desc:   "valid",
			mutate: func(*mine.Config) {},
		},
		{
			desc:   "missing contract",
			mutate: func(c *mine.Config) { c.Miner.Contract = "" },
			err:    mine.ErrMissingContract,
		},
		{
			desc:   "invalid operator",
			mutate: func(c *mine.Config) { c.Miner.Address = "me" },
			err:    mine.ErrInvalidAddress,
		},
		{
			desc:   "explicit operator",
			mutate: func(c *mine.Config) { c.Miner.Address = "0x00000000000000000000000000000000000000aa" },
		},
		{
			desc:   "unknown runtime",
			mutate: func(c *mine.Config) { c.Trainer.Runtime = "docker" },
			err:    mine.ErrInvalidRuntime,
		},
		{
			desc:   "host without command",
			mutate: func(c *mine.Config) { c.Trainer.Command = "" },
			err:    mine.ErrMissingCommand,
		},
		{
			desc:   "wasm without module",
			mutate: func(c *mine.Config) { c.Trainer.Runtime = mine.RuntimeWasm },
			err:    mine.ErrMissingModule,
		},
		{
			desc:   "missing gradient file",
			mutate: func(c *mine.Config) { c.Workspace.Files = map[string]string{trainer.ModelFile: "m.pkl"} },
			err:    trainer.ErrMissingFile,
		},
		{
			desc:   "unknown ledger",
			mutate: func(c *mine.Config) { c.Daemon.Ledger = "mongodb" },
			err:    mine.ErrInvalidLedger,
		},
		{
			desc:   "postgres ledger without url",
			mutate: func(c *mine.Config) { c.Daemon.Ledger = "postgres" },
			err:    mine.ErrMissingLedgerURL,
		},
		{
			desc:   "cron schedule",
			mutate: func(c *mine.Config) { c.Daemon.Schedule = "*/10 * * * *" },
		},
		{
			desc:   "invalid cron schedule",
			mutate: func(c *mine.Config) { c.Daemon.Schedule = "every now and then" },
			err:    cron.ErrInvalidCronExpression,
		},
		{
			desc:   "qos out of range",
			mutate: func(c *mine.Config) { c.MQTT.QoS = 3 },
			err:    mine.ErrInvalidQoS,
		},
		{
			desc:   "negative poll interval",
			mutate: func(c *mine.Config) { c.Daemon.PollInterval = -time.Second },
			err:    mine.ErrNegativeDuration,
		},
		{
			desc:   "negative trainer timeout",
			mutate: func(c *mine.Config) { c.Trainer.Timeout = -time.Minute },
			err:    mine.ErrNegativeDuration,
		},
		{
			desc:   "negative ipfs timeout",
			mutate: func(c *mine.Config) { c.IPFS.Timeout = -time.Second },
			err:    mine.ErrNegativeDuration,
		},
		{
			desc:   "negative receipt poll",
			mutate: func(c *mine.Config) { c.Miner.ReceiptPoll = -time.Millisecond },
			err:    mine.ErrNegativeDuration,
		},
		{
			desc:   "zero durations",
			mutate: func(c *mine.Config) { c.Daemon.PollInterval, c.Trainer.Timeout, c.IPFS.Timeout = 0, 0, 0 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := mine.DefaultConfig()
	cfg.Miner.Contract = contract
	cfg.LogLevel = "loud"

	assert.Error(t, cfg.Validate())
}

func TestSaveLoad(t *testing.T) {
	cfg := mine.DefaultConfig()
	cfg.Miner.Contract = contract
	cfg.Trainer.Command = "train"

	path := filepath.Join(t.TempDir(), "mine.toml")
	require.NoError(t, cfg.Save(path))

	loaded, err := mine.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, contract, loaded.Miner.Contract)
	assert.Equal(t, "train", loaded.Trainer.Command)
	assert.Equal(t, cfg.InstanceName, loaded.InstanceName)
}
