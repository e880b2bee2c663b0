// Package mocks provides a testify mock for the artifact store.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/HassanDastagir/SpotCancerAI/internal/artifact"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Stage(ctx context.Context, cat artifact.Category, r io.Reader, declaredName, mimeType string, size int64) (artifact.Staged, error) {
	args := m.Called(ctx, cat, r, declaredName, mimeType, size)
	return args.Get(0).(artifact.Staged), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, location string) error {
	args := m.Called(ctx, location)
	return args.Error(0)
}
