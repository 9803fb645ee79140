//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shopforge/orderflow/internal/domain/campaign"
	"github.com/shopforge/orderflow/internal/domain/cart"
	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/product"
	"github.com/shopforge/orderflow/internal/domain/promotion"
	"github.com/shopforge/orderflow/internal/domain/stock"
)

// startPostgres launches a disposable postgres container and returns a
// migrated pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "orderflow",
				"POSTGRES_PASSWORD": "orderflow",
				"POSTGRES_DB":       "orderflow",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://orderflow:orderflow@%s:%s/orderflow?sslmode=disable", host, port.Port())

	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func insertProduct(t *testing.T, pool *pgxpool.Pool, id string, price string, stockN int, categories []string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, name, price, stock, categories)
		VALUES ($1, $1, $2, $3, $4)`,
		id, decimal.RequireFromString(price), stockN, categories)
	require.NoError(t, err)
}

func TestProductRepository_RoundTrip(t *testing.T) {
	pool := startPostgres(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	insertProduct(t, pool, "p1", "12.50", 10, []string{"snacks"})
	insertProduct(t, pool, "p2", "24.00", 5, []string{"coffee", "beans"})

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(got.Price))
	assert.Equal(t, 10, got.Stock)
	assert.Equal(t, []string{"snacks"}, got.Categories)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, product.ErrNotFound)

	batch, err := repo.GetByIDs(ctx, []string{"p1", "p2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStockLedger_AvailabilityAndDecrement(t *testing.T) {
	pool := startPostgres(t)
	ledger := NewStockLedger(pool)
	ctx := context.Background()

	insertProduct(t, pool, "p1", "10.00", 3, nil)

	av, err := ledger.CheckAvailability(ctx, []stock.Request{
		{ProductID: "p1", Quantity: 5},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, av.Shortages, 2)
	assert.Equal(t, stock.ReasonInsufficient, av.Shortages[0].Reason)
	assert.Equal(t, 3, av.Shortages[0].Available)
	assert.Equal(t, stock.ReasonNotFound, av.Shortages[1].Reason)

	res, err := ledger.Decrement(ctx, []stock.Request{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, res.OK())

	res, err = ledger.Decrement(ctx, []stock.Request{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Available)
}

func TestStockLedger_LastUnitRace(t *testing.T) {
	pool := startPostgres(t)
	ledger := NewStockLedger(pool)
	ctx := context.Background()

	insertProduct(t, pool, "p1", "10.00", 1, nil)

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := ledger.Decrement(ctx, []stock.Request{{ProductID: "p1", Quantity: 1}})
			if err == nil && res.OK() {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won, "exactly one checkout may take the last unit")
}

func TestPromotionRepository_UsageLimitGuard(t *testing.T) {
	pool := startPostgres(t)
	repo := NewPromotionRepository(pool)
	ctx := context.Background()

	limit := 2
	code := &promotion.Code{
		ID:         "pc-1",
		Code:       "SAVE10",
		Kind:       promotion.KindPercentage,
		Amount:     decimal.NewFromInt(10),
		Scope:      promotion.ScopeAll,
		UsageLimit: &limit,
		StartsAt:   time.Now().Add(-time.Hour),
		EndsAt:     time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, code))

	found, err := repo.FindByCode(ctx, "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", found.Code)
	require.NotNil(t, found.UsageLimit)
	assert.Equal(t, 2, *found.UsageLimit)

	_, err = repo.FindByCode(ctx, "NOPE99")
	assert.ErrorIs(t, err, promotion.ErrNotFound)

	require.NoError(t, repo.IncrementUsage(ctx, "pc-1"))
	require.NoError(t, repo.IncrementUsage(ctx, "pc-1"))
	assert.ErrorIs(t, repo.IncrementUsage(ctx, "pc-1"), promotion.ErrUsageLimitReached)

	values, err := repo.CodeValues(ctx)
	require.NoError(t, err)
	assert.Contains(t, values, "SAVE10")
}

func TestCampaignRepository_ActiveWindow(t *testing.T) {
	pool := startPostgres(t)
	repo := NewCampaignRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	insert := func(id string, from, to time.Time) {
		_, err := pool.Exec(ctx, `
			INSERT INTO campaigns (id, name, kind, amount, categories, starts_at, ends_at)
			VALUES ($1, $1, 'percentage', 10, '{"snacks"}', $2, $3)`,
			id, from, to)
		require.NoError(t, err)
	}
	insert("live", now.Add(-time.Hour), now.Add(time.Hour))
	insert("expired", now.Add(-2*time.Hour), now.Add(-time.Hour))
	insert("future", now.Add(time.Hour), now.Add(2*time.Hour))

	active, err := repo.ActiveCampaigns(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)
	assert.Equal(t, campaign.KindPercentage, active[0].Kind)

	require.NoError(t, repo.IncrementUses(ctx, []string{"live"}))
	active, err = repo.ActiveCampaigns(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, active[0].Uses)
}

func TestCartStore_LinesAndClear(t *testing.T) {
	pool := startPostgres(t)
	store := NewCartStore(pool)
	ctx := context.Background()

	require.NoError(t, store.AddLine(ctx, "cust-1", cart.Line{
		ProductID:  "p1",
		Quantity:   2,
		Attributes: map[string]string{"size": "L"},
	}))
	require.NoError(t, store.AddLine(ctx, "cust-1", cart.Line{ProductID: "p1", Quantity: 1}))

	lines, err := store.Lines(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity, "conflicting add bumps quantity")

	require.NoError(t, store.Clear(ctx, "cust-1"))
	lines, err = store.Lines(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderRepository_LifecycleAndHistory(t *testing.T) {
	pool := startPostgres(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()

	o := &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Lines: []order.LineItem{{
			ProductID:    "p1",
			Name:         "Trail Mix",
			RequestedQty: 2,
			EffectiveQty: 2,
			UnitPrice:    decimal.RequireFromString("10.00"),
			Subtotal:     decimal.RequireFromString("20.00"),
		}},
		Subtotal:      decimal.RequireFromString("20.00"),
		Total:         decimal.RequireFromString("27.59"),
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PromotionCode: "SAVE10",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.MarkPaid(ctx, "ord-1", "TXN-1"))
	require.NoError(t, repo.AppendAttempt(ctx, order.Attempt{
		ID:            "att-1",
		OrderID:       "ord-1",
		TransactionID: "TXN-1",
		Amount:        o.Total,
		Succeeded:     true,
		CreatedAt:     time.Now().UTC(),
	}))

	n, err := repo.OrderCount(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	used, err := repo.HasUsedCode(ctx, "cust-1", "SAVE10")
	require.NoError(t, err)
	assert.True(t, used)

	// A failed checkout neither counts as a purchase nor consumes a code.
	failed := *o
	failed.ID = "ord-2"
	failed.PromotionCode = "WELCOME5"
	require.NoError(t, repo.Create(ctx, &failed))
	require.NoError(t, repo.MarkPaymentFailed(ctx, "ord-2", "card_declined"))

	n, err = repo.OrderCount(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	used, err = repo.HasUsedCode(ctx, "cust-1", "WELCOME5")
	require.NoError(t, err)
	assert.False(t, used)
}
