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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/storage/postgres"
)

type seedFile struct {
	Sizes []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"sizes"`
	Products []struct {
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock map[string]int  `json:"stock"`
	} `json:"products"`
	Promotions []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Percentage decimal.Decimal `json:"percentage"`
		StartsAt   time.Time       `json:"startsAt"`
		EndsAt     time.Time       `json:"endsAt"`
		ApplyToAll bool            `json:"applyToAll"`
		Products   []string        `json:"products"`
	} `json:"promotions"`
	Discounts []discountJSON `json:"discounts"`
	Users     []struct {
		ID      string `json:"id"`
		Address struct {
			ID        string `json:"id"`
			Recipient string `json:"recipient"`
			Phone     string `json:"phone"`
			Line1     string `json:"line1"`
			City      string `json:"city"`
			Country   string `json:"country"`
		} `json:"address"`
		Cart []struct {
			ProductID string `json:"productId"`
			SizeID    string `json:"sizeId"`
			Quantity  int    `json:"quantity"`
		} `json:"cart"`
	} `json:"users"`
}

type discountJSON struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Type             string          `json:"type"`
	Percentage       decimal.Decimal `json:"percentage"`
	Value            decimal.Decimal `json:"value"`
	MaxDiscountValue decimal.Decimal `json:"maxDiscountValue"`
	MinOrderValue    decimal.Decimal `json:"minOrderValue"`
	MaxUses          int             `json:"maxUses"`
	StartsAt         time.Time       `json:"startsAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/storefront.json", "path to the demo data JSON file")
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

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

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

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := seedCatalog(ctx, tx, &seed); err != nil {
			return errors.Wrap(err, "seed catalog")
		}
		if err := seedPromotions(ctx, tx, &seed); err != nil {
			return errors.Wrap(err, "seed promotions")
		}
		if err := seedDiscounts(ctx, tx, seed.Discounts); err != nil {
			return errors.Wrap(err, "seed discounts")
		}
		if err := seedUsers(ctx, tx, &seed); err != nil {
			return errors.Wrap(err, "seed users")
		}
		return nil
	})
}

func seedCatalog(ctx context.Context, tx pgx.Tx, seed *seedFile) error {
	for _, s := range seed.Sizes {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sizes (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			s.ID, s.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert size %s", s.ID)
		}
	}

	slog.Info("upserting products", slog.Int("count", len(seed.Products)))

	for _, p := range seed.Products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, price) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`,
			p.ID, p.Name, p.Price,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for size, qty := range p.Stock {
			if _, err := tx.Exec(ctx, `
				INSERT INTO inventory (product_id, size_id, quantity) VALUES ($1, $2, $3)
				ON CONFLICT (product_id, size_id)
				DO UPDATE SET quantity = EXCLUDED.quantity, version = inventory.version + 1`,
				p.ID, size, qty,
			); err != nil {
				return errors.Wrapf(err, "upsert inventory %s/%s", p.ID, size)
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedPromotions(ctx context.Context, tx pgx.Tx, seed *seedFile) error {
	for _, p := range seed.Promotions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO promotions (id, name, percentage, starts_at, ends_at, apply_to_all)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, percentage = EXCLUDED.percentage,
				starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
				apply_to_all = EXCLUDED.apply_to_all`,
			p.ID, p.Name, p.Percentage, p.StartsAt, p.EndsAt, p.ApplyToAll,
		); err != nil {
			return errors.Wrapf(err, "upsert promotion %s", p.ID)
		}

		for _, productID := range p.Products {
			if _, err := tx.Exec(ctx, `
				INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				p.ID, productID,
			); err != nil {
				return errors.Wrapf(err, "link promotion %s to %s", p.ID, productID)
			}
		}

		slog.Info("upserted promotion", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedDiscounts(ctx context.Context, tx pgx.Tx, discounts []discountJSON) error {
	for _, d := range discounts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO discounts (
				id, code, type, percentage, value, max_discount_value, min_order_value,
				max_uses, starts_at, expires_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				type = EXCLUDED.type, percentage = EXCLUDED.percentage, value = EXCLUDED.value,
				max_discount_value = EXCLUDED.max_discount_value,
				min_order_value = EXCLUDED.min_order_value, max_uses = EXCLUDED.max_uses,
				starts_at = EXCLUDED.starts_at, expires_at = EXCLUDED.expires_at,
				version = discounts.version + 1`,
			d.ID, d.Code, d.Type, d.Percentage, d.Value, d.MaxDiscountValue, d.MinOrderValue,
			d.MaxUses, d.StartsAt, d.ExpiresAt,
		); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}

		slog.Info("upserted discount", slog.String("id", d.ID), slog.String("code", d.Code))
	}

	return nil
}

// seedUsers creates each demo user's address and refills their cart.
func seedUsers(ctx context.Context, tx pgx.Tx, seed *seedFile) error {
	for _, u := range seed.Users {
		a := u.Address
		if _, err := tx.Exec(ctx, `
			INSERT INTO addresses (id, user_id, recipient, phone, line1, city, country)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			a.ID, u.ID, a.Recipient, a.Phone, a.Line1, a.City, a.Country,
		); err != nil {
			return errors.Wrapf(err, "insert address for %s", u.ID)
		}

		var cartID string
		if err := tx.QueryRow(ctx, `
			INSERT INTO carts (id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
			RETURNING id`,
			uuid.NewString(), u.ID,
		).Scan(&cartID); err != nil {
			return errors.Wrapf(err, "upsert cart for %s", u.ID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return errors.Wrapf(err, "clear cart %s", cartID)
		}
		for _, it := range u.Cart {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_items (id, cart_id, product_id, size_id, quantity)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.NewString(), cartID, it.ProductID, it.SizeID, it.Quantity,
			); err != nil {
				return errors.Wrapf(err, "add %s to cart %s", it.ProductID, cartID)
			}
		}

		slog.Info("seeded user", slog.String("id", u.ID), slog.Int("cart_items", len(u.Cart)))
	}

	return nil
}
