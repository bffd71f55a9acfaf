// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/seatctl/api/schemas"
	"github.com/xkilldash9x/seatctl/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Engine() config.EngineConfig {
	args := m.Called()
	return args.Get(0).(config.EngineConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Automation() config.AutomationConfig {
	args := m.Called()
	return args.Get(0).(config.AutomationConfig)
}

func (m *MockConfig) Invite() config.InviteConfig {
	args := m.Called()
	return args.Get(0).(config.InviteConfig)
}

func (m *MockConfig) Secrets() config.SecretsConfig {
	args := m.Called()
	return args.Get(0).(config.SecretsConfig)
}

func (m *MockConfig) Service() config.ServiceConfig {
	args := m.Called()
	return args.Get(0).(config.ServiceConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	args := m.Called()
	return args.Get(0).(config.MetricsConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetAutomationInteractive(b bool) {
	m.Called(b)
}

// -- Store Mock --

// MockStore mocks the account and job persistence used by the service.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListAccounts(ctx context.Context) ([]schemas.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Account), args.Error(1)
}

func (m *MockStore) GetAccount(ctx context.Context, id string) (schemas.Account, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Account), args.Error(1)
}

func (m *MockStore) ApplyProbe(ctx context.Context, id string, probe schemas.ProbeResult) error {
	args := m.Called(ctx, id, probe)
	return args.Error(0)
}

func (m *MockStore) CreateJob(ctx context.Context, job *schemas.InviteJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStore) UpdateJob(ctx context.Context, job *schemas.InviteJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockStore) GetJob(ctx context.Context, id string) (*schemas.InviteJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.InviteJob), args.Error(1)
}

// -- Secrets Mock --

// MockDecrypter mocks the credential cipher.
type MockDecrypter struct {
	mock.Mock
}

func (m *MockDecrypter) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}
