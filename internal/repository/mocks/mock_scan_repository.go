package mocks

import (
	"context"

	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockScanRepository struct {
	mock.Mock
}

func (m *MockScanRepository) Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) FindByIDForOwner(ctx context.Context, id, ownerID string) (*model.ScanRecord, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) ListByOwner(ctx context.Context, ownerID string, q repository.ListQuery) (*repository.PageResult[model.ScanRecord], error) {
	args := m.Called(ctx, ownerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.ScanRecord]), args.Error(1)
}

func (m *MockScanRepository) DeleteByIDForOwner(ctx context.Context, id, ownerID string) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

func (m *MockScanRepository) DeleteAllByOwner(ctx context.Context, ownerID string) ([]string, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockScanRepository) AggregateForOwner(ctx context.Context, ownerID string) (*model.OwnerStats, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OwnerStats), args.Error(1)
}

func (m *MockScanRepository) RecentByOwner(ctx context.Context, ownerID string, limit int) ([]model.ScanSummary, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ScanSummary), args.Error(1)
}

func (m *MockScanRepository) MonthlyRiskTrend(ctx context.Context, ownerID string, limit int) ([]model.RiskTrendPoint, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RiskTrendPoint), args.Error(1)
}
