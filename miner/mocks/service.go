package mocks

import (
	"context"

	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
	"github.com/stretchr/testify/mock"
)

var _ miner.Service = (*Service)(nil)

// Service is a mock implementation of the miner.Service interface.
type Service struct {
	mock.Mock
}

func (m *Service) Connect(ctx context.Context, dataDir, passwordFile string) error {
	args := m.Called(ctx, dataDir, passwordFile)

	return args.Error(0)
}

func (m *Service) Models(ctx context.Context) (map[uint64]sonar.Model, error) {
	args := m.Called(ctx)
	models, _ := args.Get(0).(map[uint64]sonar.Model)

	return models, args.Error(1)
}

func (m *Service) Model(ctx context.Context, id uint64) (sonar.Model, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(sonar.Model), args.Error(1)
}

func (m *Service) Train(ctx context.Context, model sonar.Model) (sonar.Receipt, error) {
	args := m.Called(ctx, model)

	return args.Get(0).(sonar.Receipt), args.Error(1)
}

func (m *Service) Submissions(ctx context.Context, offset, limit uint64) (storage.SubmissionPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(storage.SubmissionPage), args.Error(1)
}

func (m *Service) State() miner.State {
	args := m.Called()

	return args.Get(0).(miner.State)
}

func (m *Service) Operator() string {
	args := m.Called()

	return args.String(0)
}
