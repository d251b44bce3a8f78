package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the charge is awaiting provider confirmation.
	StatusPending Status = "pending"
	// StatusPaid indicates the provider reports the charge as captured.
	StatusPaid Status = "paid"
	// StatusFailed indicates the provider reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// ChargeRequest captures the payload required to charge an order.
type ChargeRequest struct {
	OrderID  string
	Amount   float64
	Method   string
	UserID   *string
	Metadata map[string]string
}

// ChargeResult normalises provider specific fields for storage on the order.
type ChargeResult struct {
	Provider      string
	Status        Status
	TransactionID string
	ChargedAt     time.Time
}

// Provider defines the contract for payment adapters to implement.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
// Providers are keyed by payment method; methods without a dedicated provider
// fall through to the default.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider for methods without explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap[SimulatorKey]; ok {
		m.defaultProvider = SimulatorKey
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolveProvider(method string) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if key := strings.TrimSpace(strings.ToLower(method)); key != "" {
		if p, ok := m.providers[key]; ok {
			return key, p, nil
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Charge delegates to the provider resolved for the request's payment method.
func (m *Manager) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	key, provider, err := m.resolveProvider(req.Method)
	if err != nil {
		return ChargeResult{}, err
	}
	result, err := provider.Charge(ctx, req)
	if err != nil {
		return ChargeResult{}, err
	}
	result.Provider = key
	return result, nil
}

var _ Provider = (*Manager)(nil)
