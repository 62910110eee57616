package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/kproc/service/dao"
)

type record struct {
	ID   int
	Name string
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int, record](func(r *record) int { return r.ID })

	require.NoError(t, s.Save(ctx, &record{ID: 1, Name: "a"}))
	require.NoError(t, s.Save(ctx, &record{ID: 2, Name: "b"}))
	assert.ErrorIs(t, s.Save(ctx, nil), dao.ErrNilEntity)
	assert.Equal(t, 2, s.Len())

	r, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Name)
	r, err = s.Load(ctx, 3)
	assert.NoError(t, err)
	assert.Nil(t, r)

	assert.NoError(t, s.Delete(ctx, 1))
	assert.ErrorIs(t, s.Delete(ctx, 1), dao.ErrNotFound)
	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
