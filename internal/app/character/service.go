package character

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"character-server/internal/domain/character"
	"character-server/internal/platform/mq"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event is the envelope published after every committed write. Deletes only
// carry the id.
type Event struct {
	ID          uuid.UUID            `json:"id"`
	Type        string               `json:"type"`
	OccurredAt  time.Time            `json:"occurred_at"`
	Character   *character.Character `json:"character,omitempty"`
	CharacterID int64                `json:"character_id"`
}

type Service struct {
	logger  zerolog.Logger
	pub     mq.Publisher
	subject string
	now     func() time.Time
}

func NewService(logger zerolog.Logger, pub mq.Publisher, subject string) *Service {
	if pub == nil {
		pub = mq.NewNoopPublisher()
	}
	return &Service{logger: logger, pub: pub, subject: subject, now: time.Now}
}

func (s *Service) Create(ctx context.Context, sess character.Session, in character.Create) (character.Character, error) {
	c, err := sess.Create(ctx, in)
	if err != nil {
		return character.Character{}, err
	}
	s.logger.Debug().Int64("character_id", c.ID).Msg("character created")
	s.publishEvent(ctx, EventCreated, c.ID, &c)
	return c, nil
}

func (s *Service) List(ctx context.Context, sess character.Session, skip, limit int) ([]character.Character, error) {
	return sess.List(ctx, skip, limit)
}

func (s *Service) Get(ctx context.Context, sess character.Session, id int64) (character.Character, error) {
	return sess.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, sess character.Session, id int64, patch character.Patch) (character.Character, error) {
	c, err := sess.Update(ctx, id, patch)
	if err != nil {
		return character.Character{}, err
	}
	s.logger.Debug().Int64("character_id", c.ID).Msg("character updated")
	s.publishEvent(ctx, EventUpdated, c.ID, &c)
	return c, nil
}

func (s *Service) Delete(ctx context.Context, sess character.Session, id int64) error {
	if err := sess.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Debug().Int64("character_id", id).Msg("character deleted")
	s.publishEvent(ctx, EventDeleted, id, nil)
	return nil
}

// publishEvent never fails the caller; the write is already committed.
func (s *Service) publishEvent(ctx context.Context, kind string, id int64, c *character.Character) {
	ev := Event{
		ID:          uuid.New(),
		Type:        s.subject + "." + kind,
		OccurredAt:  s.now().UTC(),
		Character:   c,
		CharacterID: id,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Type).Msg("marshal event failed")
		return
	}
	if err := s.pub.Publish(ctx, ev.Type, b); err != nil {
		s.logger.Warn().Err(err).Str("event", ev.Type).Int64("character_id", id).Msg("publish event failed")
	}
}
