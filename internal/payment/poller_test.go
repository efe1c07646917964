package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mcoutinho/atelie-shop/internal/config"
	"github.com/mcoutinho/atelie-shop/internal/models"
)

type fakeProvider struct {
	mu       sync.Mutex
	statuses map[string]string
	errs     map[string]error
	calls    map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		statuses: map[string]string{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeProvider) PaymentStatus(ctx context.Context, reference string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[reference]++
	if err := f.errs[reference]; err != nil {
		return "", err
	}
	if st, ok := f.statuses[reference]; ok {
		return st, nil
	}
	return models.OrderStatusPendente, nil
}

func (f *fakeProvider) callCount(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[reference]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status string) models.Order {
	t.Helper()
	order := models.Order{
		UserID:     1,
		Name:       "Maria",
		Email:      "maria@example.com",
		Frete:      decimal.RequireFromString("10.00"),
		Total:      decimal.RequireFromString("110.00"),
		Status:     status,
		PaymentRef: uuid.New(),
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollerTransitionsOnceAndStopsWatching(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, models.OrderStatusPendente)

	provider := newFakeProvider()
	provider.statuses[order.PaymentRef.String()] = models.OrderStatusAprovado

	p := &Poller{DB: db, Provider: provider, Logger: quietLogger()}

	p.pollOnce(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderStatusAprovado, got.Status)
	require.Equal(t, 1, provider.callCount(order.PaymentRef.String()))

	// Terminal orders are no longer polled, and the state never moves again.
	p.pollOnce(context.Background())
	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderStatusAprovado, got.Status)
	require.Equal(t, 1, provider.callCount(order.PaymentRef.String()))
}

func TestPollerCancelledPayment(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, models.OrderStatusPendente)

	provider := newFakeProvider()
	provider.statuses[order.PaymentRef.String()] = models.OrderStatusCancelado

	p := &Poller{DB: db, Provider: provider, Logger: quietLogger()}
	p.pollOnce(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderStatusCancelado, got.Status)
}

func TestPollerSurvivesTransientErrors(t *testing.T) {
	db := newTestDB(t)
	failing := seedOrder(t, db, models.OrderStatusPendente)
	healthy := seedOrder(t, db, models.OrderStatusPendente)

	provider := newFakeProvider()
	provider.errs[failing.PaymentRef.String()] = errors.New("provider unreachable")
	provider.statuses[healthy.PaymentRef.String()] = models.OrderStatusAprovado

	p := &Poller{DB: db, Provider: provider, Logger: quietLogger()}
	p.pollOnce(context.Background())

	// The failing order stays pendente; the healthy one still resolved.
	var got models.Order
	require.NoError(t, db.First(&got, failing.ID).Error)
	require.Equal(t, models.OrderStatusPendente, got.Status)
	got = models.Order{}
	require.NoError(t, db.First(&got, healthy.ID).Error)
	require.Equal(t, models.OrderStatusAprovado, got.Status)

	// Next tick retries the failed reference.
	p.pollOnce(context.Background())
	require.Equal(t, 2, provider.callCount(failing.PaymentRef.String()))
}

func TestPollerPendingStaysPending(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, models.OrderStatusPendente)

	provider := newFakeProvider()

	p := &Poller{DB: db, Provider: provider, Logger: quietLogger()}
	p.pollOnce(context.Background())
	p.pollOnce(context.Background())

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderStatusPendente, got.Status)
	require.Equal(t, 2, provider.callCount(order.PaymentRef.String()))
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	db := newTestDB(t)
	provider := newFakeProvider()

	p := &Poller{DB: db, Provider: provider, Interval: 10 * time.Millisecond, Logger: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}
