package mine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/miner/api"
	"github.com/openmined/mine/miner/middleware"
	"github.com/openmined/mine/pkg/cron"
	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/ipfs"
	"github.com/openmined/mine/pkg/mqtt"
	"github.com/openmined/mine/pkg/prometheus"
	"github.com/openmined/mine/pkg/registry"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/pkg/tracing"
	"github.com/openmined/mine/sonar"
	"github.com/openmined/mine/trainer"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const SvcName = "mine"

// Node is a fully wired miner: the orchestrator behind its middleware, the
// daemon, and the resources they hold.
type Node struct {
	Service miner.Service
	Daemon  *miner.Daemon
	Ledger  storage.SubmissionRepository

	cfg     Config
	pubsub  mqtt.PubSub
	logger  *slog.Logger
	closers []func(ctx context.Context) error
}

func NewNode(ctx context.Context, cfg Config, logger *slog.Logger) (node *Node, err error) {
	n := &Node{
		cfg:    cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, n.Close(context.Background()))
		}
	}()

	tracer, err := n.tracer(ctx)
	if err != nil {
		return nil, err
	}

	chain, err := eth.Dial(ctx, eth.Config{
		URL:            cfg.Miner.EthereumURL,
		UnlockDuration: cfg.Miner.UnlockDuration,
		ReceiptPoll:    cfg.Miner.ReceiptPoll,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ethereum client: %w", err)
	}
	n.onClose(func(context.Context) error {
		chain.Close()

		return nil
	})

	dialer, err := ipfs.NewDialer(ipfs.Config{
		URL:     cfg.IPFS.URL,
		Timeout: cfg.IPFS.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create IPFS client: %w", err)
	}

	runner, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	n.Ledger, err = NewLedger(cfg.Daemon)
	if err != nil {
		return nil, fmt.Errorf("failed to open submission ledger: %w", err)
	}
	n.onClose(func(context.Context) error {
		return n.Ledger.Close()
	})

	sinks := miner.Sinks{miner.NewLoggerSink(logger)}
	if cfg.MQTT.Address != "" {
		if err := n.connectPubSub(); err != nil {
			return nil, err
		}
		sinks = append(sinks, miner.NewPubSubSink(n.pubsub, mqtt.Topic(cfg.MQTT.Topic, mqtt.EventsTopic), logger))
	}

	svc, err := miner.NewService(miner.Config{
		Address:      cfg.Miner.Address,
		Contract:     cfg.Miner.Contract,
		Debug:        cfg.Debug,
		WorkspaceDir: cfg.Workspace.Dir,
		Files:        cfg.Workspace.Files,
		Cleanup:      cfg.Workspace.Cleanup,
		InputData:    cfg.Trainer.InputData,
		TargetData:   cfg.Trainer.TargetData,
		Enrichment: miner.Enrichment{
			Enabled:      cfg.Enrichment.Enabled,
			MinGradients: cfg.Enrichment.MinGradients,
		},
	}, miner.Deps{
		Chain: chain,
		Store: miner.StoreDialerFunc(func(ctx context.Context) (miner.Store, error) {
			client, err := dialer.Connect(ctx)
			if err != nil {
				return nil, err
			}

			return client, nil
		}),
		Gateway: func(contract, operator eth.Address) miner.Gateway {
			return sonar.New(chain, contract, operator)
		},
		Runner: runner,
		Ledger: n.Ledger,
		Sink:   sinks,
	}, logger)
	if err != nil {
		return nil, err
	}

	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(SvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)
	n.Service = svc

	var opts []miner.DaemonOption
	if cfg.Daemon.Schedule != "" {
		schedule, err := cron.Parse(cfg.Daemon.Schedule, cfg.Daemon.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid daemon schedule: %w", err)
		}
		opts = append(opts, miner.WithSchedule(schedule))
	}
	n.Daemon = miner.NewDaemon(svc, n.Ledger, cfg.Daemon.PollInterval, logger, opts...)

	if n.pubsub != nil {
		topic := mqtt.Topic(cfg.MQTT.Topic, mqtt.ControlTopic)
		if err := n.pubsub.Subscribe(ctx, topic, n.Daemon.HandleControl); err != nil {
			return nil, fmt.Errorf("failed to subscribe to control topic: %w", err)
		}
	}

	return n, nil
}

// Connect connects the orchestrator using the configured keystore and
// password file.
func (n *Node) Connect(ctx context.Context) error {
	return n.Service.Connect(ctx, n.cfg.Miner.DataDir, n.cfg.Miner.PasswordFile)
}

func (n *Node) Handler() http.Handler {
	return api.MakeHandler(n.Service, n.logger, n.cfg.InstanceName)
}

// Close releases resources in reverse order of acquisition.
func (n *Node) Close(ctx context.Context) error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	n.closers = nil

	return errors.Join(errs...)
}

func (n *Node) onClose(f func(ctx context.Context) error) {
	n.closers = append(n.closers, f)
}

func (n *Node) tracer(ctx context.Context) (trace.Tracer, error) {
	if n.cfg.OTEL.URL == "" {
		return noop.NewTracerProvider().Tracer(SvcName), nil
	}

	u, err := url.Parse(n.cfg.OTEL.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid otel url: %w", err)
	}
	tp, err := tracing.NewProvider(ctx, SvcName, *u, n.cfg.InstanceName, n.cfg.OTEL.TraceRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}
	n.onClose(tp.Shutdown)

	return tp.Tracer(SvcName), nil
}

func (n *Node) connectPubSub() error {
	clientID := n.cfg.MQTT.ClientID
	if clientID == "" {
		clientID = SvcName + "-" + uuid.NewString()
	}

	ps, err := mqtt.NewPubSub(mqtt.Config{
		Address:  n.cfg.MQTT.Address,
		Topic:    n.cfg.MQTT.Topic,
		ClientID: clientID,
		Instance: n.cfg.InstanceName,
		Username: n.cfg.MQTT.Username,
		Password: n.cfg.MQTT.Password,
		QoS:      n.cfg.MQTT.QoS,
		Timeout:  n.cfg.MQTT.Timeout,
	}, n.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %w", err)
	}
	n.pubsub = ps
	n.onClose(ps.Disconnect)

	return nil
}

func newRunner(ctx context.Context, cfg Config, logger *slog.Logger) (trainer.Runner, error) {
	switch cfg.Trainer.Runtime {
	case RuntimeWasm:
		wasmCfg := trainer.WasmConfig{
			Module:  cfg.Trainer.Module,
			Debug:   cfg.Debug,
			Timeout: cfg.Trainer.Timeout,
		}
		if registry.IsReference(cfg.Trainer.Module) {
			binary, err := registry.New(cfg.Trainer.Registry, logger).Fetch(ctx, cfg.Trainer.Module)
			if err != nil {
				return nil, fmt.Errorf("failed to pull trainer module: %w", err)
			}
			wasmCfg.Binary = binary
		}

		return trainer.NewWasmRunner(wasmCfg, logger)
	case RuntimeHost, "":
		return trainer.NewHostRunner(trainer.HostConfig{
			Command: cfg.Trainer.Command,
			Args:    cfg.Trainer.Args,
			Debug:   cfg.Debug,
			Timeout: cfg.Trainer.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRuntime, cfg.Trainer.Runtime)
	}
}
