package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cooolfix/airgate/internal/config"
)

// Method selects a payment rail.
type Method string

const (
	MethodMpesa Method = "mpesa"
	MethodCard  Method = "card"
)

// Status is the lifecycle of one transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
)

var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrInvalidRequest     = errors.New("invalid payment request")
)

// Request asks for a package purchase.
type Request struct {
	Method    Method `json:"method"`
	PackageID string `json:"package_id"`
	AmountKES int    `json:"amount_kes"`
	// Phone is required for mpesa, CardNumber for card.
	Phone      string `json:"phone,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
}

// Receipt acknowledges an initiated transaction. Settlement is asynchronous:
// poll Verify until the status leaves pending.
type Receipt struct {
	TransactionID string    `json:"transaction_id"`
	Status        Status    `json:"status"`
	Message       string    `json:"message"`
	InitiatedAt   time.Time `json:"initiated_at"`
}

// Provider initiates transactions and reports their settlement.
type Provider interface {
	Initiate(ctx context.Context, req Request) (Receipt, error)
	Verify(ctx context.Context, transactionID string) (Status, error)
}

// Simulated settles transactions after a fixed delay without touching any
// real rail. A configurable failure rate lets soak tests exercise the
// decline path.
type Simulated struct {
	settleDelay time.Duration
	failureRate float64
	logger      *slog.Logger

	// Test hooks.
	now   func() time.Time
	newID func() string
	roll  func() float64

	mu   sync.Mutex
	txns map[string]*transaction
}

type transaction struct {
	status    Status
	settlesAt time.Time
	willFail  bool
}

func NewSimulated(cfg config.PaymentsConfig, logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{
		settleDelay: time.Duration(cfg.SettleDelayMS) * time.Millisecond,
		failureRate: cfg.FailureRate,
		logger:      logger.With(slog.String("component", "payments")),
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
		roll:        rand.Float64,
		txns:        make(map[string]*transaction),
	}
}

func (s *Simulated) Initiate(ctx context.Context, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := validate(req); err != nil {
		return Receipt{}, err
	}

	now := s.now()
	id := s.newID()
	txn := &transaction{
		status:    StatusPending,
		settlesAt: now.Add(s.settleDelay),
		willFail:  s.roll() < s.failureRate,
	}

	s.mu.Lock()
	s.txns[id] = txn
	s.mu.Unlock()

	s.logger.Info("payment initiated",
		slog.String("transaction_id", id),
		slog.String("method", string(req.Method)),
		slog.String("package_id", req.PackageID),
		slog.Int("amount_kes", req.AmountKES))

	msg := "Payment request sent. Enter your PIN on your phone to confirm."
	if req.Method == MethodCard {
		msg = "Card authorization in progress."
	}
	return Receipt{
		TransactionID: id,
		Status:        StatusPending,
		Message:       msg,
		InitiatedAt:   now,
	}, nil
}

func (s *Simulated) Verify(ctx context.Context, transactionID string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTransaction, transactionID)
	}
	if txn.status == StatusPending && !s.now().Before(txn.settlesAt) {
		if txn.willFail {
			txn.status = StatusFailed
		} else {
			txn.status = StatusSettled
		}
		s.logger.Info("payment resolved",
			slog.String("transaction_id", transactionID),
			slog.String("status", string(txn.status)))
	}
	return txn.status, nil
}

func validate(req Request) error {
	if req.AmountKES <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.PackageID == "" {
		return fmt.Errorf("%w: package id required", ErrInvalidRequest)
	}
	switch req.Method {
	case MethodMpesa:
		if strings.TrimSpace(req.Phone) == "" {
			return fmt.Errorf("%w: phone number required for mpesa", ErrInvalidRequest)
		}
	case MethodCard:
		digits := strings.ReplaceAll(req.CardNumber, " ", "")
		if len(digits) < 12 {
			return fmt.Errorf("%w: card number required", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unsupported method %q", ErrInvalidRequest, req.Method)
	}
	return nil
}
