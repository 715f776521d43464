package character

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"character-server/internal/domain/character"
	"character-server/internal/domain/character/charactertest"
)

type published struct {
	subject string
	data    []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return p.err
}

func (p *recordingPublisher) Close() {}

func newTestService(t *testing.T, pub *recordingPublisher) (*Service, character.Session) {
	t.Helper()
	svc := NewService(zerolog.Nop(), pub, "characters")
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	store := charactertest.NewStore()
	sess, err := store.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(sess.Release)
	return svc, sess
}

func decodeEvent(t *testing.T, b []byte) Event {
	t.Helper()
	var ev Event
	require.NoError(t, json.Unmarshal(b, &ev))
	return ev
}

func TestCreateThenGet(t *testing.T) {
	pub := &recordingPublisher{}
	svc, sess := newTestService(t, pub)
	ctx := context.Background()

	c, err := svc.Create(ctx, sess, character.Create{Name: "Aria", Story: "A wanderer"})
	require.NoError(t, err)
	assert.Positive(t, c.ID)
	assert.Equal(t, "Aria", c.Name)
	assert.Equal(t, "A wanderer", c.Story)

	got, err := svc.Get(ctx, sess, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "characters.created", pub.msgs[0].subject)
	ev := decodeEvent(t, pub.msgs[0].data)
	assert.Equal(t, "characters.created", ev.Type)
	assert.Equal(t, c.ID, ev.CharacterID)
	require.NotNil(t, ev.Character)
	assert.Equal(t, c, *ev.Character)
	assert.True(t, ev.OccurredAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestCreateAcceptsEmptyStrings(t *testing.T) {
	svc, sess := newTestService(t, &recordingPublisher{})

	c, err := svc.Create(context.Background(), sess, character.Create{})
	require.NoError(t, err)
	assert.Empty(t, c.Name)
	assert.Empty(t, c.Story)
}

func TestListReturnsAllCreated(t *testing.T) {
	svc, sess := newTestService(t, &recordingPublisher{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, sess, character.Create{Name: "n", Story: "s"})
		require.NoError(t, err)
	}
	chars, err := svc.List(ctx, sess, character.DefaultSkip, character.DefaultLimit)
	require.NoError(t, err)
	assert.Len(t, chars, 5)

	chars, err = svc.List(ctx, sess, 3, 1)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, int64(4), chars[0].ID)
}

func TestUpdateOnlyTouchesGivenFields(t *testing.T) {
	pub := &recordingPublisher{}
	svc, sess := newTestService(t, pub)
	ctx := context.Background()

	c, err := svc.Create(ctx, sess, character.Create{Name: "Aria", Story: "A wanderer"})
	require.NoError(t, err)

	story := "New story"
	got, err := svc.Update(ctx, sess, c.ID, character.Patch{Story: &story})
	require.NoError(t, err)
	assert.Equal(t, character.Character{ID: c.ID, Name: "Aria", Story: "New story"}, got)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "characters.updated", pub.msgs[1].subject)
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	pub := &recordingPublisher{}
	svc, sess := newTestService(t, pub)

	name := "x"
	_, err := svc.Update(context.Background(), sess, 999999, character.Patch{Name: &name})
	require.ErrorIs(t, err, character.ErrNotFound)
	assert.Empty(t, pub.msgs)
}

func TestDeleteTwice(t *testing.T) {
	pub := &recordingPublisher{}
	svc, sess := newTestService(t, pub)
	ctx := context.Background()

	c, err := svc.Create(ctx, sess, character.Create{Name: "Aria", Story: "A wanderer"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sess, c.ID))
	_, err = svc.Get(ctx, sess, c.ID)
	require.ErrorIs(t, err, character.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, sess, c.ID), character.ErrNotFound)

	require.Len(t, pub.msgs, 2)
	ev := decodeEvent(t, pub.msgs[1].data)
	assert.Equal(t, "characters.deleted", ev.Type)
	assert.Equal(t, c.ID, ev.CharacterID)
	assert.Nil(t, ev.Character)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc, sess := newTestService(t, pub)

	c, err := svc.Create(context.Background(), sess, character.Create{Name: "Aria", Story: "A wanderer"})
	require.NoError(t, err)
	assert.Positive(t, c.ID)
}

func TestStorageErrorPropagates(t *testing.T) {
	store := charactertest.NewStore()
	sess, err := store.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()

	boom := errors.New("connection reset")
	store.OpErr = boom
	svc := NewService(zerolog.Nop(), nil, "characters")

	_, err = svc.Create(context.Background(), sess, character.Create{Name: "a", Story: "b"})
	require.ErrorIs(t, err, boom)
}
