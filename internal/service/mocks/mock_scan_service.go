// Package mocks provides a testify mock for the scan service.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/HassanDastagir/SpotCancerAI/internal/model"
	"github.com/HassanDastagir/SpotCancerAI/internal/service"
)

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Submit(ctx context.Context, ownerID string, up service.Upload) (*model.ScanRecord, error) {
	args := m.Called(ctx, ownerID, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanService) Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanService) List(ctx context.Context, ownerID string, opts service.ListOptions) (*service.ScanListResult, error) {
	args := m.Called(ctx, ownerID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ScanListResult), args.Error(1)
}

func (m *MockScanService) Delete(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockScanService) Statistics(ctx context.Context, ownerID string) (*service.Statistics, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Statistics), args.Error(1)
}

func (m *MockScanService) DeleteAllForOwner(ctx context.Context, ownerID string) error {
	args := m.Called(ctx, ownerID)
	return args.Error(0)
}
