package testing

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/tnrctl/internal/instance"
	"github.com/imamik/tnrctl/internal/keys"
)

// MockAddressResolver is a testify mock of the pool's address lookup.
type MockAddressResolver struct {
	mock.Mock
}

// Address returns the configured host for id.
func (m *MockAddressResolver) Address(ctx context.Context, id instance.ID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// MockKeyResolver is a testify mock of the pool's key lookup.
type MockKeyResolver struct {
	mock.Mock
}

// Resolve returns the configured key material for id.
func (m *MockKeyResolver) Resolve(ctx context.Context, id instance.ID) (*keys.Material, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keys.Material), args.Error(1)
}
