// Package mine wires a mining node from its configuration.
package mine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/caarlos0/env/v11"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/cron"
	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/registry"
	"github.com/openmined/mine/pkg/server"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/trainer"
	"github.com/pelletier/go-toml"
)

const (
	DefConfigPath = "mine.toml"

	RuntimeHost = "host"
	RuntimeWasm = "wasm"

	filePermission = 0o644
)

var (
	ErrMissingContract  = errors.New("miner contract address is required")
	ErrInvalidAddress   = errors.New("miner address must be 'auto' or an ethereum address")
	ErrInvalidRuntime   = errors.New("trainer runtime must be 'host' or 'wasm'")
	ErrMissingCommand   = errors.New("trainer command is required for the host runtime")
	ErrMissingModule    = errors.New("trainer module is required for the wasm runtime")
	ErrInvalidLedger    = errors.New("daemon ledger must be 'memory', 'badger', 'sqlite' or 'postgres'")
	ErrMissingLedgerURL = errors.New("daemon ledger_url is required for the postgres ledger")
	ErrInvalidQoS       = errors.New("mqtt qos must be 0, 1 or 2")
	ErrNegativeDuration = errors.New("duration must not be negative")
)

type Config struct {
	Debug        bool   `toml:"debug"         env:"MINE_DEBUG"`
	LogLevel     string `toml:"log_level"     env:"MINE_LOG_LEVEL"`
	InstanceName string `toml:"instance_name" env:"MINE_INSTANCE_NAME"`

	Miner      MinerConfig      `toml:"miner"`
	IPFS       IPFSConfig       `toml:"ipfs"`
	Trainer    TrainerConfig    `toml:"trainer"`
	Workspace  WorkspaceConfig  `toml:"workspace"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Daemon     DaemonConfig     `toml:"daemon"`
	MQTT       MQTTConfig       `toml:"mqtt"`
	HTTP       server.Config    `toml:"http"          envPrefix:"MINE_HTTP_"`
	OTEL       OTELConfig       `toml:"otel"`
}

type MinerConfig struct {
	// Address is the operator account, or "auto" for the node's first account.
	Address        string        `toml:"address"         env:"MINE_ADDRESS"`
	Contract       string        `toml:"contract"        env:"MINE_CONTRACT"`
	EthereumURL    string        `toml:"ethereum_url"    env:"MINE_ETHEREUM_URL"`
	DataDir        string        `toml:"data_dir"        env:"MINE_DATA_DIR"`
	PasswordFile   string        `toml:"password_file"   env:"MINE_PASSWORD_FILE"`
	UnlockDuration time.Duration `toml:"unlock_duration" env:"MINE_UNLOCK_DURATION"`
	ReceiptPoll    time.Duration `toml:"receipt_poll"    env:"MINE_RECEIPT_POLL"`
}

type IPFSConfig struct {
	URL     string        `toml:"url"     env:"MINE_IPFS_URL"`
	Timeout time.Duration `toml:"timeout" env:"MINE_IPFS_TIMEOUT"`
}

type TrainerConfig struct {
	Runtime    string        `toml:"runtime"     env:"MINE_TRAINER_RUNTIME"`
	Command    string        `toml:"command"     env:"MINE_TRAINER_COMMAND"`
	Args       []string      `toml:"args"        env:"MINE_TRAINER_ARGS"`
	Module     string        `toml:"module"      env:"MINE_TRAINER_MODULE"`
	InputData  string        `toml:"input_data"  env:"MINE_TRAINER_INPUT_DATA"`
	TargetData string        `toml:"target_data" env:"MINE_TRAINER_TARGET_DATA"`
	Timeout    time.Duration `toml:"timeout"     env:"MINE_TRAINER_TIMEOUT"`
	// Registry authenticates pulls of oci:// trainer modules.
	Registry registry.Config `toml:"registry" envPrefix:"MINE_TRAINER_REGISTRY_"`
}

type WorkspaceConfig struct {
	Dir     string            `toml:"dir"     env:"MINE_WORKSPACE_DIR"`
	Cleanup bool              `toml:"cleanup" env:"MINE_WORKSPACE_CLEANUP"`
	Files   map[string]string `toml:"files"   env:"MINE_WORKSPACE_FILES"`
}

type EnrichmentConfig struct {
	Enabled      bool   `toml:"enabled"       env:"MINE_ENRICHMENT_ENABLED"`
	MinGradients uint64 `toml:"min_gradients" env:"MINE_ENRICHMENT_MIN_GRADIENTS"`
}

type DaemonConfig struct {
	// PollInterval of zero makes the daemon run a single pass, unless a
	// Schedule is set.
	PollInterval time.Duration `toml:"poll_interval" env:"MINE_DAEMON_POLL_INTERVAL"`
	// Schedule is a cron expression that takes precedence over PollInterval.
	Schedule     string        `toml:"schedule"      env:"MINE_DAEMON_SCHEDULE"`
	Timezone     string        `toml:"timezone"      env:"MINE_DAEMON_TIMEZONE"`
	Ledger       string        `toml:"ledger"        env:"MINE_DAEMON_LEDGER"`
	LedgerDir    string        `toml:"ledger_dir"    env:"MINE_DAEMON_LEDGER_DIR"`
	LedgerURL    string        `toml:"ledger_url"    env:"MINE_DAEMON_LEDGER_URL"`
}

// MQTTConfig is optional; events are only published when Address is set.
type MQTTConfig struct {
	Address  string        `toml:"address"   env:"MINE_MQTT_ADDRESS"`
	Topic    string        `toml:"topic"     env:"MINE_MQTT_TOPIC"`
	QoS      uint8         `toml:"qos"       env:"MINE_MQTT_QOS"`
	Timeout  time.Duration `toml:"timeout"   env:"MINE_MQTT_TIMEOUT"`
	ClientID string        `toml:"client_id" env:"MINE_MQTT_CLIENT_ID"`
	Username string        `toml:"username"  env:"MINE_MQTT_USERNAME"`
	Password string        `toml:"password"  env:"MINE_MQTT_PASSWORD"`
}

type OTELConfig struct {
	URL        string  `toml:"url"         env:"MINE_OTEL_URL"`
	TraceRatio float64 `toml:"trace_ratio" env:"MINE_OTEL_TRACE_RATIO"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		InstanceName: namegenerator.NewGenerator().Generate(),
		Miner: MinerConfig{
			Address:     miner.AutoAddress,
			EthereumURL: "http://localhost:8545",
		},
		IPFS: IPFSConfig{
			URL:     "http://localhost:5001",
			Timeout: time.Minute,
		},
		Trainer: TrainerConfig{
			Runtime:    RuntimeHost,
			Command:    "syft_cmd",
			Args:       []string{"generate_gradient"},
			InputData:  "data/adapters/diabetes/diabetes_input.csv",
			TargetData: "data/adapters/diabetes/diabetes_output.csv",
		},
		Workspace: WorkspaceConfig{
			Files: maps.Clone(trainer.DefaultFiles),
		},
		Enrichment: EnrichmentConfig{
			MinGradients: 1,
		},
		Daemon: DaemonConfig{
			PollInterval: 30 * time.Second,
			Ledger:       storage.TypeMemory,
			LedgerDir:    "data/ledger",
		},
		MQTT: MQTTConfig{
			Topic:   "mine",
			QoS:     1,
			Timeout: 30 * time.Second,
		},
		HTTP: server.Config{
			Port: "7171",
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults and then applies
// MINE_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		tree, err := toml.Load(string(data))
		if err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
		if err := tree.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as TOML to path.
func (c Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	return os.WriteFile(path, data, filePermission)
}

func (c Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Miner.Contract == "" {
		errs = append(errs, ErrMissingContract)
	} else if _, err := eth.ParseAddress(c.Miner.Contract); err != nil {
		errs = append(errs, fmt.Errorf("contract: %w", err))
	}
	if c.Miner.Address != miner.AutoAddress {
		if _, err := eth.ParseAddress(c.Miner.Address); err != nil {
			errs = append(errs, errors.Join(ErrInvalidAddress, err))
		}
	}

	switch c.Trainer.Runtime {
	case RuntimeHost:
		if c.Trainer.Command == "" {
			errs = append(errs, ErrMissingCommand)
		}
	case RuntimeWasm:
		if c.Trainer.Module == "" {
			errs = append(errs, ErrMissingModule)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidRuntime, c.Trainer.Runtime))
	}

	for _, key := range []string{trainer.ModelFile, trainer.GradientFile} {
		if len(c.Workspace.Files) > 0 && c.Workspace.Files[key] == "" {
			errs = append(errs, fmt.Errorf("workspace files: %w: %s", trainer.ErrMissingFile, key))
		}
	}

	switch c.Daemon.Ledger {
	case storage.TypeMemory, storage.TypeBadger, storage.TypeSQLite:
	case storage.TypePostgres:
		if c.Daemon.LedgerURL == "" {
			errs = append(errs, ErrMissingLedgerURL)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLedger, c.Daemon.Ledger))
	}

	if c.Daemon.Schedule != "" {
		if _, err := cron.Parse(c.Daemon.Schedule, c.Daemon.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("daemon schedule: %w", err))
		}
	}

	if c.MQTT.QoS > 2 {
		errs = append(errs, ErrInvalidQoS)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"miner.unlock_duration", c.Miner.UnlockDuration},
		{"miner.receipt_poll", c.Miner.ReceiptPoll},
		{"ipfs.timeout", c.IPFS.Timeout},
		{"trainer.timeout", c.Trainer.Timeout},
		{"daemon.poll_interval", c.Daemon.PollInterval},
		{"mqtt.timeout", c.MQTT.Timeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s = %s", ErrNegativeDuration, d.name, d.d))
		}
	}

	return errors.Join(errs...)
}

// Level parses LogLevel the way slog does.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("failed to parse log level: %w", err)
	}

	return level, nil
}
