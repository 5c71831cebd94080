package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cooolfix/airgate/internal/config"
)

func newTestProvider(t *testing.T, cfg config.PaymentsConfig) (*Simulated, *time.Time) {
	t.Helper()
	p := NewSimulated(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	seq := 0
	p.newID = func() string { seq++; return fmt.Sprintf("txn-%d", seq) }
	return p, &now
}

func TestMpesaSettlesAfterDelay(t *testing.T) {
	p, now := newTestProvider(t, config.PaymentsConfig{SettleDelayMS: 2000})

	receipt, err := p.Initiate(context.Background(), Request{
		Method:    MethodMpesa,
		PackageID: "silver-20m",
		AmountKES: 2499,
		Phone:     "254712000000",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if receipt.Status != StatusPending {
		t.Fatalf("status = %v, want pending", receipt.Status)
	}

	status, err := p.Verify(context.Background(), receipt.TransactionID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if status != StatusPending {
		t.Fatalf("settled before the delay elapsed: %v", status)
	}

	*now = now.Add(2 * time.Second)
	status, err = p.Verify(context.Background(), receipt.TransactionID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if status != StatusSettled {
		t.Fatalf("status = %v after delay, want settled", status)
	}
}

func TestCardSettles(t *testing.T) {
	p, now := newTestProvider(t, config.PaymentsConfig{SettleDelayMS: 100})

	receipt, err := p.Initiate(context.Background(), Request{
		Method:     MethodCard,
		PackageID:  "gold-40m",
		AmountKES:  3999,
		CardNumber: "4242 4242 4242 4242",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	*now = now.Add(time.Second)
	status, err := p.Verify(context.Background(), receipt.TransactionID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if status != StatusSettled {
		t.Fatalf("status = %v, want settled", status)
	}
}

func TestConfiguredFailureRateDeclines(t *testing.T) {
	p, now := newTestProvider(t, config.PaymentsConfig{SettleDelayMS: 0, FailureRate: 1})
	p.roll = func() float64 { return 0.5 }

	receipt, err := p.Initiate(context.Background(), Request{
		Method:    MethodMpesa,
		PackageID: "bronze-10m",
		AmountKES: 1499,
		Phone:     "254712000000",
	})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	*now = now.Add(time.Millisecond)
	status, err := p.Verify(context.Background(), receipt.TransactionID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %v with failure rate 1, want failed", status)
	}
}

func TestInvalidRequestsRejected(t *testing.T) {
	p, _ := newTestProvider(t, config.PaymentsConfig{})

	cases := []Request{
		{Method: MethodMpesa, PackageID: "p", AmountKES: 0, Phone: "254712000000"},
		{Method: MethodMpesa, PackageID: "", AmountKES: 100, Phone: "254712000000"},
		{Method: MethodMpesa, PackageID: "p", AmountKES: 100},
		{Method: MethodCard, PackageID: "p", AmountKES: 100, CardNumber: "1234"},
		{Method: "cheque", PackageID: "p", AmountKES: 100},
	}
	for i, req := range cases {
		if _, err := p.Initiate(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: error = %v, want ErrInvalidRequest", i, err)
		}
	}
}

func TestVerifyUnknownTransaction(t *testing.T) {
	p, _ := newTestProvider(t, config.PaymentsConfig{})

	if _, err := p.Verify(context.Background(), "nope"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("error = %v, want ErrUnknownTransaction", err)
	}
}
