// Package mockstorage provides a testify-based mock implementation
// of storage.Backend. It is used to simulate backend failures in store
// and router tests.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

// BackendMock is a testify mock that implements storage.Backend.
type BackendMock struct {
	mock.Mock

	// OnLoad is an optional function field that can be assigned
	// to define custom behavior for Load in tests.
	//
	// If set, Load still records the call and then delegates to this
	// function instead of using the values given to On("Load").Return(...).
	OnLoad func(ctx context.Context) (*models.Document, error)
}

// Load mocks reading the whole document.
func (m *BackendMock) Load(ctx context.Context) (*models.Document, error) {
	if m.OnLoad != nil {
		m.Called(ctx)
		return m.OnLoad(ctx)
	}

	args := m.Called(ctx)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

// Save mocks replacing the whole document.
func (m *BackendMock) Save(ctx context.Context, doc *models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// Ping mocks the backend health check.
func (m *BackendMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the backend.
func (m *BackendMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
