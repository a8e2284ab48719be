package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"freshmart/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type countingSweepService struct {
	mu     sync.Mutex
	sweeps int
	err    error
}

func (c *countingSweepService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.sweeps++
	return 1, nil
}

func (c *countingSweepService) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func (c *countingSweepService) ReserveForCart(ctx context.Context, holder domain.Holder, productID uuid.UUID, quantity int) (*domain.Reservation, error) {
	return nil, nil
}

func (c *countingSweepService) ConfirmForCheckout(ctx context.Context, holder domain.Holder, productIDs []uuid.UUID) (*domain.Reservation, error) {
	return nil, nil
}

func (c *countingSweepService) ConfirmPayment(ctx context.Context, reservationID, orderID uuid.UUID) error {
	return nil
}

func (c *countingSweepService) Release(ctx context.Context, reservationID uuid.UUID) error {
	return nil
}

func (c *countingSweepService) MyReservations(ctx context.Context, holder domain.Holder, kind *domain.ReservationKind) ([]*domain.Reservation, error) {
	return nil, nil
}

func TestSweeper_RunsImmediatelyAndOnCadence(t *testing.T) {
	svc := &countingSweepService{}
	sweeper := NewSweeper(svc, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// Wait for the immediate pass plus at least one tick.
	deadline := time.After(2 * time.Second)
	for svc.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeps = %d, want at least 2", svc.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}

	if sweeper.LastRun().IsZero() {
		t.Error("LastRun should be set after a successful pass")
	}
}

func TestSweeper_FailedPassDoesNotAdvanceLastRun(t *testing.T) {
	svc := &countingSweepService{err: context.DeadlineExceeded}
	sweeper := NewSweeper(svc, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if !sweeper.LastRun().IsZero() {
		t.Error("LastRun must stay zero when every pass fails")
	}
}
