package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SimulatorKey is the registration key for the built-in simulated provider.
const SimulatorKey = "simulated"

// Simulator approves every charge and mints a deterministic transaction ID
// derived from the order. It stands in for a real PSP in every environment.
type Simulator struct {
	clock func() time.Time
}

// SimulatorOption configures the simulator.
type SimulatorOption func(*Simulator)

// WithSimulatorClock overrides the time source used for charge timestamps.
func WithSimulatorClock(clock func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSimulator constructs the simulated payment provider.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Charge approves the payment unconditionally.
func (s *Simulator) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	if s == nil {
		return ChargeResult{}, errors.New("payments: simulator is nil")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return ChargeResult{}, errors.New("payments: order id is required")
	}
	if req.Amount < 0 {
		return ChargeResult{}, fmt.Errorf("payments: negative amount %.2f", req.Amount)
	}

	return ChargeResult{
		Status:        StatusPaid,
		TransactionID: TransactionID(orderID),
		ChargedAt:     s.clock().UTC(),
	}, nil
}

// TransactionID derives the simulated transaction reference from the order ID,
// keeping the trailing six characters.
func TransactionID(orderID string) string {
	suffix := orderID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "TXN-" + suffix
}

var _ Provider = (*Simulator)(nil)
