// Command seed-db loads catalog, campaign and cart fixtures into the
// database for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopforge/orderflow/internal/storage/postgres"
)

type productJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Categories       []string        `json:"categories"`
	DiscountExcluded bool            `json:"discount_excluded"`
}

type campaignJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	BuyX             int             `json:"buy_x"`
	GetY             int             `json:"get_y"`
	Categories       []string        `json:"categories"`
	ExcludedProducts []string        `json:"excluded_products"`
	StartsAt         time.Time       `json:"starts_at"`
	EndsAt           time.Time       `json:"ends_at"`
	MinPurchase      decimal.Decimal `json:"min_purchase"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		campaignsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&campaignsFile, "campaigns-file", "db/seed/campaigns.json", "path to campaigns JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, campaignsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, campaignsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCampaigns(ctx, pool, campaignsFile); err != nil {
		return errors.Wrap(err, "seed campaigns")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	slog.Info("reading products file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, stock, categories, discount_excluded)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				categories = EXCLUDED.categories,
				discount_excluded = EXCLUDED.discount_excluded`,
			p.ID, p.Name, p.Price, p.Stock, p.Categories, p.DiscountExcluded)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCampaigns(ctx context.Context, pool *pgxpool.Pool, path string) error {
	slog.Info("reading campaigns file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read campaigns file")
	}

	var campaigns []campaignJSON
	if err := json.Unmarshal(data, &campaigns); err != nil {
		return errors.Wrap(err, "parse campaigns JSON")
	}

	slog.Info("upserting campaigns", slog.Int("count", len(campaigns)))

	for _, c := range campaigns {
		_, err := pool.Exec(ctx, `
			INSERT INTO campaigns (
				id, name, kind, amount, buy_x, get_y,
				categories, excluded_products,
				starts_at, ends_at, min_purchase
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				amount = EXCLUDED.amount,
				buy_x = EXCLUDED.buy_x,
				get_y = EXCLUDED.get_y,
				categories = EXCLUDED.categories,
				excluded_products = EXCLUDED.excluded_products,
				starts_at = EXCLUDED.starts_at,
				ends_at = EXCLUDED.ends_at,
				min_purchase = EXCLUDED.min_purchase`,
			c.ID, c.Name, c.Kind, c.Amount, c.BuyX, c.GetY,
			c.Categories, c.ExcludedProducts,
			c.StartsAt, c.EndsAt, c.MinPurchase)
		if err != nil {
			return errors.Wrapf(err, "upsert campaign %s", c.ID)
		}

		slog.Info("upserted campaign", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return nil
}
