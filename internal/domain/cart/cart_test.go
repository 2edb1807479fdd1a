package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	carts   map[string]Cart
	items   map[string][]Item
	listErr error
}

func (m *mockRepo) GetByUser(_ context.Context, userID string) (Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) ListItems(_ context.Context, cartID string) ([]Item, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.items[cartID], nil
}

func (m *mockRepo) DeleteItems(_ context.Context, cartID string) error {
	delete(m.items, cartID)
	return nil
}

func TestReader_Load(t *testing.T) {
	repo := &mockRepo{
		carts: map[string]Cart{
			"u1": {ID: "c1", UserID: "u1"},
			"u2": {ID: "c2", UserID: "u2"},
		},
		items: map[string][]Item{
			"c1": {
				{ID: "i1", CartID: "c1", ProductID: "p1", SizeID: "s", Quantity: 1},
				{ID: "i2", CartID: "c1", ProductID: "p2", SizeID: "m", Quantity: 3},
			},
		},
	}
	r := NewReader(repo)
	ctx := context.Background()

	c, items, err := r.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	require.Len(t, items, 2)
	assert.Equal(t, "i1", items[0].ID)

	c, items, err = r.Load(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)
	assert.Empty(t, items)

	_, _, err = r.Load(ctx, "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReader_LoadItemsError(t *testing.T) {
	repo := &mockRepo{
		carts:   map[string]Cart{"u1": {ID: "c1"}},
		listErr: errors.New("boom"),
	}

	_, _, err := NewReader(repo).Load(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestProductIDs(t *testing.T) {
	ids := ProductIDs([]Item{
		{ProductID: "b"},
		{ProductID: "a"},
		{ProductID: "b"},
	})
	assert.Equal(t, []string{"b", "a"}, ids)
}
