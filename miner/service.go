package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/openmined/mine/pkg/errors"
	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
	"github.com/openmined/mine/trainer"
)

var _ Service = (*service)(nil)

type Deps struct {
	Chain   Chain
	Store   StoreDialer
	Gateway GatewayFactory
	Runner  trainer.Runner
	// Ledger records successful submissions. Optional.
	Ledger storage.SubmissionRepository
	Sink   Sink
}

type service struct {
	// mu serializes Connect, Models, Model and Train.
	mu sync.Mutex

	cfg      Config
	contract eth.Address
	files    map[string]string

	chain      Chain
	dialer     StoreDialer
	newGateway GatewayFactory
	runner     trainer.Runner
	ledger     storage.SubmissionRepository
	sink       Sink
	logger     *slog.Logger
	now        func() time.Time

	state    atomic.Int32
	operator atomic.Value
	gateway  Gateway
	store    Store
}

func NewService(cfg Config, deps Deps, logger *slog.Logger) (Service, error) {
	contract, err := eth.ParseAddress(cfg.Contract)
	if err != nil {
		return nil, errors.Join(ErrInvalidContract, err)
	}

	files := cfg.Files
	if len(files) == 0 {
		files = trainer.DefaultFiles
	}

	sink := deps.Sink
	if sink == nil {
		sink = NewLoggerSink(logger)
	}

	svc := &service{
		cfg:        cfg,
		contract:   contract,
		files:      maps.Clone(files),
		chain:      deps.Chain,
		dialer:     deps.Store,
		newGateway: deps.Gateway,
		runner:     deps.Runner,
		ledger:     deps.Ledger,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
	}
	svc.operator.Store(cfg.Address)

	return svc, nil
}

func (svc *service) State() State {
	return State(svc.state.Load())
}

func (svc *service) Operator() string {
	return svc.operator.Load().(string)
}

func (svc *service) Connect(ctx context.Context, dataDir, passwordFile string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.setState(Connecting)
	svc.gateway, svc.store = nil, nil

	gateway, store, err := svc.connect(ctx, dataDir, passwordFile)
	if err != nil {
		svc.setState(Disconnected)
		svc.fail(ctx, "Failed to connect", err)

		return err
	}

	svc.gateway, svc.store = gateway, store
	svc.setState(Connected)

	online := store.IsOnline()
	svc.log(ctx, fmt.Sprintf("Connected to IPFS. Online %t", online))
	svc.emit(ctx, Event{Kind: EventConnect, Online: online})

	return nil
}

func (svc *service) connect(ctx context.Context, dataDir, passwordFile string) (Gateway, Store, error) {
	operator, err := svc.resolveOperator(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc.operator.Store(operator.String())

	gateway := svc.newGateway(svc.contract, operator)

	svc.log(ctx, "Connecting to chain")
	if err := svc.chain.Connect(ctx, operator, dataDir, passwordFile); err != nil {
		return nil, nil, fmt.Errorf("%w: chain: %w", ErrConnectionFailed, err)
	}
	svc.log(ctx, "Connected to chain")

	store, err := svc.dialer.Connect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: ipfs: %w", ErrConnectionFailed, err)
	}

	return gateway, store, nil
}

func (svc *service) resolveOperator(ctx context.Context) (eth.Address, error) {
	if svc.cfg.Address != AutoAddress {
		operator, err := eth.ParseAddress(svc.cfg.Address)
		if err != nil {
			return eth.Address{}, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}

		return operator, nil
	}

	accounts, err := svc.chain.Accounts(ctx)
	if err != nil {
		return eth.Address{}, fmt.Errorf("%w: accounts: %w", ErrConnectionFailed, err)
	}
	if len(accounts) == 0 {
		return eth.Address{}, ErrNoAccountAvailable
	}

	return accounts[0], nil
}

func (svc *service) Models(ctx context.Context) (map[uint64]sonar.Model, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.connected(); err != nil {
		return nil, err
	}

	svc.log(ctx, fmt.Sprintf("Looking for models to train at %s for mine %s", svc.contract, svc.Operator()))

	count, err := svc.gateway.ModelCount(ctx)
	if err != nil {
		err = fmt.Errorf("%w: model count: %w", ErrEnumerationFailed, err)
		svc.fail(ctx, "Failed to enumerate models", err)

		return nil, err
	}
	svc.log(ctx, fmt.Sprintf("%d models found", count))

	models := make(map[uint64]sonar.Model, count)
	for id := range count {
		m, err := svc.model(ctx, id)
		if err != nil {
			err = fmt.Errorf("%w: model %d: %w", ErrEnumerationFailed, id, err)
			svc.fail(ctx, "Failed to enumerate models", err)

			return nil, err
		}
		models[id] = m
	}

	return models, nil
}

func (svc *service) Model(ctx context.Context, id uint64) (sonar.Model, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.connected(); err != nil {
		return sonar.Model{}, err
	}

	// The contract answers any id with a zero tuple, so ids past the end
	// must be caught here.
	count, err := svc.gateway.ModelCount(ctx)
	if err != nil {
		return sonar.Model{}, fmt.Errorf("%w: model count: %w", ErrEnumerationFailed, err)
	}
	if id >= count {
		return sonar.Model{}, fmt.Errorf("%w: model %d (contract has %d)", pkgerrors.ErrNotFound, id, count)
	}

	return svc.model(ctx, id)
}

func (svc *service) model(ctx context.Context, id uint64) (sonar.Model, error) {
	m, err := svc.gateway.Model(ctx, id)
	if err != nil {
		return sonar.Model{}, err
	}

	if svc.cfg.Enrichment.Enabled && m.GradientCount > svc.cfg.Enrichment.MinGradients {
		g, err := svc.gateway.Gradient(ctx, id, m.GradientCount-1)
		if err != nil {
			svc.fail(ctx, "Could not fetch gradients", err)

			return m, nil
		}
		svc.log(ctx, fmt.Sprintf("latest gradient#%d: %s (weights: %s)", g.ID, g.GradientsAddress, g.WeightsAddress))
	}

	return m, nil
}

func (svc *service) Submissions(ctx context.Context, offset, limit uint64) (storage.SubmissionPage, error) {
	if svc.ledger == nil {
		return storage.SubmissionPage{Offset: offset, Limit: limit}, nil
	}

	return svc.ledger.List(ctx, offset, limit)
}

func (svc *service) connected() error {
	if svc.State() != Connected || svc.gateway == nil || svc.store == nil {
		return ErrNotConnected
	}

	return nil
}

func (svc *service) setState(s State) {
	svc.state.Store(int32(s))
}

func (svc *service) log(ctx context.Context, msg string) {
	svc.emit(ctx, Event{Kind: EventLog, Message: msg})
}

func (svc *service) fail(ctx context.Context, msg string, err error) {
	svc.emit(ctx, Event{Kind: EventError, Message: msg, Err: err})
}

func (svc *service) emit(ctx context.Context, e Event) {
	if e.Time.IsZero() {
		e.Time = svc.now()
	}
	svc.sink.Handle(ctx, e)
}
