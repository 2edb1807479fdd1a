package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	products []Product
	calls    int
}

func (m *mockRepo) GetProducts(_ context.Context, ids []string) ([]Product, error) {
	m.calls++
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Product
	for _, p := range m.products {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetAddress(context.Context, string) (Address, error) {
	return Address{}, ErrAddressNotFound
}

func TestIndexProducts(t *testing.T) {
	repo := &mockRepo{products: []Product{
		{ID: "p1", Price: decimal.NewFromInt(5)},
		{ID: "p2", Price: decimal.NewFromInt(7)},
	}}

	byID, err := IndexProducts(context.Background(), repo, []string{"p2", "p1"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, 1, repo.calls)

	_, err = IndexProducts(context.Background(), repo, []string{"p1", "p3"})
	require.ErrorIs(t, err, ErrProductNotFound)

	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "p3", nf.ProductID)
}
