package mocks

import (
	"context"
	"io"

	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/ipfs"
	"github.com/openmined/mine/sonar"
	"github.com/openmined/mine/trainer"
	"github.com/stretchr/testify/mock"
)

var (
	_ miner.Chain    = (*Chain)(nil)
	_ miner.Gateway  = (*Gateway)(nil)
	_ miner.Store    = (*Store)(nil)
	_ trainer.Runner = (*Runner)(nil)
)

type Chain struct {
	mock.Mock
}

func (m *Chain) Accounts(ctx context.Context) ([]eth.Address, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]eth.Address)

	return accounts, args.Error(1)
}

func (m *Chain) Connect(ctx context.Context, operator eth.Address, dataDir, passwordFile string) error {
	args := m.Called(ctx, operator, dataDir, passwordFile)

	return args.Error(0)
}

type Gateway struct {
	mock.Mock
}

func (m *Gateway) ModelCount(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)

	return args.Get(0).(uint64), args.Error(1)
}

func (m *Gateway) Model(ctx context.Context, id uint64) (sonar.Model, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(sonar.Model), args.Error(1)
}

func (m *Gateway) Gradient(ctx context.Context, modelID, index uint64) (sonar.Gradient, error) {
	args := m.Called(ctx, modelID, index)

	return args.Get(0).(sonar.Gradient), args.Error(1)
}

func (m *Gateway) AddGradient(ctx context.Context, modelID uint64, gradientsAddress string) (sonar.Receipt, error) {
	args := m.Called(ctx, modelID, gradientsAddress)

	return args.Get(0).(sonar.Receipt), args.Error(1)
}

type Store struct {
	mock.Mock
}

func (m *Store) IsOnline() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *Store) Get(ctx context.Context, address string, w io.Writer) error {
	args := m.Called(ctx, address, w)

	return args.Error(0)
}

// Add returns either a fixed result list or, when the first return value is
// a func([]ipfs.File) []ipfs.AddResult, the results computed from files.
func (m *Store) Add(ctx context.Context, files ...ipfs.File) ([]ipfs.AddResult, error) {
	args := m.Called(ctx, files)

	switch ret := args.Get(0).(type) {
	case func([]ipfs.File) []ipfs.AddResult:
		return ret(files), args.Error(1)
	case []ipfs.AddResult:
		return ret, args.Error(1)
	default:
		return nil, args.Error(1)
	}
}

type Runner struct {
	mock.Mock
}

func (m *Runner) Run(ctx context.Context, job trainer.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}
