package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/example/marketplace/internal/domain/order"
)

// MockNotifier is a testify mock of notification.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, templateKey string, o *order.Order) error {
	args := m.Called(ctx, templateKey, o)
	return args.Error(0)
}

// Allow accepts any notification and reports success.
func (m *MockNotifier) Allow() *MockNotifier {
	m.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}
