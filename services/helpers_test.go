package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crm-backend/config"
	"crm-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "crm.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite allows one writer; a single connection serialises transactions.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func newTestLedger(t *testing.T, opts ...LedgerOption) (*OrderLedger, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	opts = append([]LedgerOption{WithClock(fixedClock)}, opts...)
	return NewOrderLedger(db, opts...), db
}

func seedCustomer(t *testing.T, db *gorm.DB, phone string) *models.Customer {
	t.Helper()
	customer := &models.Customer{Name: "Customer " + phone, Phone: phone}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func seedService(t *testing.T, db *gorm.DB, name, price string) *models.Service {
	t.Helper()
	service := &models.Service{Name: name, BasePrice: dec(price), Category: "General", IsActive: true}
	require.NoError(t, db.Create(service).Error)
	return service
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(qty int, price string) ItemInput {
	return ItemInput{Description: "line", Quantity: qty, UnitPrice: decPtr(price)}
}

// createOrder builds the 200 + 2x300 order used across the ledger tests.
func createOrder(t *testing.T, l *OrderLedger, customerID uint) *models.Order {
	t.Helper()
	order, err := l.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: customerID,
		Source:     models.SourceWebsite,
		Items:      []ItemInput{item(1, "200"), item(2, "300")},
	})
	require.NoError(t, err)
	return order
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}
