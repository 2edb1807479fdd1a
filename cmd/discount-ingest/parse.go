package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

// Columns of a discount CSV file. The first line is a header and is skipped.
//
//	code,type,amount,max_discount_value,min_order_value,max_uses,starts_at,expires_at
const numColumns = 8

// readFile streams a gzip-compressed CSV file into discounts.
func readFile(ctx context.Context, path string) ([]discount.Discount, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	return readCSV(ctx, gz)
}

func readCSV(ctx context.Context, r io.Reader) ([]discount.Discount, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numColumns
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read header")
	}

	var out []discount.Discount
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}
		d, err := parseRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, d)
	}
}

// parseRecord validates one CSV row. For PERCENTAGE rows amount is the
// percentage; for VALUE rows it is the fixed amount.
func parseRecord(rec []string) (discount.Discount, error) {
	if len(rec) != numColumns {
		return discount.Discount{}, errors.Errorf("expected %d columns, got %d", numColumns, len(rec))
	}

	d := discount.Discount{
		ID:   uuid.NewString(),
		Code: strings.ToUpper(strings.TrimSpace(rec[0])),
		Type: discount.Type(strings.ToUpper(strings.TrimSpace(rec[1]))),
	}
	if d.Code == "" {
		return discount.Discount{}, errors.New("empty code")
	}

	amount, err := decimalField("amount", rec[2])
	if err != nil {
		return discount.Discount{}, err
	}
	switch d.Type {
	case discount.TypePercentage:
		if amount.GreaterThan(decimal.NewFromInt(100)) {
			return discount.Discount{}, errors.Errorf("percentage %s above 100", amount)
		}
		d.Percentage = amount
	case discount.TypeValue:
		d.Value = amount
	default:
		return discount.Discount{}, errors.Errorf("unknown type %q", rec[1])
	}

	if d.MaxDiscountValue, err = decimalField("max_discount_value", rec[3]); err != nil {
		return discount.Discount{}, err
	}
	if d.MinOrderValue, err = decimalField("min_order_value", rec[4]); err != nil {
		return discount.Discount{}, err
	}

	if d.MaxUses, err = strconv.Atoi(strings.TrimSpace(rec[5])); err != nil || d.MaxUses <= 0 {
		return discount.Discount{}, errors.Errorf("invalid max_uses %q", rec[5])
	}

	if d.StartsAt, err = time.Parse(time.RFC3339, strings.TrimSpace(rec[6])); err != nil {
		return discount.Discount{}, errors.Wrap(err, "starts_at")
	}
	if d.ExpiresAt, err = time.Parse(time.RFC3339, strings.TrimSpace(rec[7])); err != nil {
		return discount.Discount{}, errors.Wrap(err, "expires_at")
	}
	if !d.ExpiresAt.After(d.StartsAt) {
		return discount.Discount{}, errors.New("expires_at must be after starts_at")
	}

	return d, nil
}

// decimalField parses a non-negative amount. Empty means zero.
func decimalField(name, v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "%s", name)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("%s is negative", name)
	}
	return d, nil
}
