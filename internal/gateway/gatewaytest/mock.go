// Package gatewaytest holds testify mocks of the gateway.
package gatewaytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shrimpsizemoose/attendo/internal/gateway"
)

type MockTables struct {
	mock.Mock
}

func (m *MockTables) Select(ctx context.Context, dest any, q gateway.Query) error {
	args := m.Called(ctx, dest, q)
	return args.Error(0)
}

func (m *MockTables) SelectOne(ctx context.Context, dest any, q gateway.Query) error {
	args := m.Called(ctx, dest, q)
	return args.Error(0)
}

func (m *MockTables) Count(ctx context.Context, table string, filters ...gateway.Filter) (int, error) {
	args := m.Called(ctx, table, filters)
	return args.Int(0), args.Error(1)
}

func (m *MockTables) Insert(ctx context.Context, table string, row gateway.Row, returning any) error {
	args := m.Called(ctx, table, row, returning)
	return args.Error(0)
}

func (m *MockTables) Update(ctx context.Context, table string, values gateway.Row, filters ...gateway.Filter) error {
	args := m.Called(ctx, table, values, filters)
	return args.Error(0)
}

func (m *MockTables) Delete(ctx context.Context, table string, filters ...gateway.Filter) error {
	args := m.Called(ctx, table, filters)
	return args.Error(0)
}

func (m *MockTables) InsertWithinLimit(ctx context.Context, table string, row gateway.Row, limit int, scope ...gateway.Filter) error {
	args := m.Called(ctx, table, row, limit, scope)
	return args.Error(0)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) SignInURL(provider, redirectTo, state string) (string, string) {
	args := m.Called(provider, redirectTo, state)
	return args.String(0), args.String(1)
}

func (m *MockAuthenticator) ExchangeCode(ctx context.Context, code, verifier string) (*gateway.Session, error) {
	args := m.Called(ctx, code, verifier)
	session, _ := args.Get(0).(*gateway.Session)
	return session, args.Error(1)
}

func (m *MockAuthenticator) Refresh(ctx context.Context, refreshToken string) (*gateway.Session, error) {
	args := m.Called(ctx, refreshToken)
	session, _ := args.Get(0).(*gateway.Session)
	return session, args.Error(1)
}

func (m *MockAuthenticator) User(ctx context.Context, accessToken string) (*gateway.User, error) {
	args := m.Called(ctx, accessToken)
	user, _ := args.Get(0).(*gateway.User)
	return user, args.Error(1)
}

func (m *MockAuthenticator) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}
