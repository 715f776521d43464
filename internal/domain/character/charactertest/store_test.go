package charactertest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-server/internal/domain/character"
)

func TestListHugeLimit(t *testing.T) {
	store := NewStore()
	sess, err := store.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	for i := 0; i < 3; i++ {
		_, err := sess.Create(context.Background(), character.Create{Name: "n", Story: "s"})
		require.NoError(t, err)
	}

	got, err := sess.List(context.Background(), 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSessionConnectsOnFirstOperation(t *testing.T) {
	store := NewStore()
	sess, err := store.Acquire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, store.Connections())

	_, err = sess.List(context.Background(), 0, 10)
	require.NoError(t, err)
	_, err = sess.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Connections())

	sess.Release()
	sess.Release()
	assert.Zero(t, store.Outstanding())
}
