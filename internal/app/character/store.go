package character

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"character-server/internal/domain/character"
)

const (
	insertCharacterSQL = `
INSERT INTO characters (name, story)
VALUES ($1, $2)
RETURNING id, name, story
`
	// No ORDER BY: rows come back in storage order.
	listCharactersSQL = `
SELECT id, name, story
FROM characters
OFFSET $1 LIMIT $2
`
	getCharacterSQL = `
SELECT id, name, story
FROM characters WHERE id = $1
`
	updateCharacterSQL = `
UPDATE characters
SET name = COALESCE($2, name), story = COALESCE($3, story)
WHERE id = $1
RETURNING id, name, story
`
	deleteCharacterSQL = `DELETE FROM characters WHERE id = $1`
)

var _ character.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var errSessionReleased = errors.New("session already released")

// Acquire opens a request session. No pool connection is taken until the
// session runs its first statement.
func (s *PostgresStore) Acquire(context.Context) (character.Session, error) {
	return &pgSession{pool: s.pool}, nil
}

type pgSession struct {
	pool *pgxpool.Pool

	mu       sync.Mutex
	conn     *pgxpool.Conn
	released bool
}

func (s *pgSession) connect(ctx context.Context) (*pgxpool.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, errSessionReleased
	}
	if s.conn == nil {
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "acquire connection")
		}
		s.conn = conn
	}
	return s.conn, nil
}

// Release returns the connection, if one was taken. Safe to call twice.
func (s *pgSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

func (s *pgSession) Create(ctx context.Context, in character.Create) (character.Character, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return character.Character{}, err
	}
	rows, err := conn.Query(ctx, insertCharacterSQL, in.Name, in.Story)
	if err != nil {
		return character.Character{}, errors.Wrap(err, "insert character")
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCharacter)
	if err != nil {
		return character.Character{}, errors.Wrap(err, "insert character")
	}
	return c, nil
}

func (s *pgSession) List(ctx context.Context, skip, limit int) ([]character.Character, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, listCharactersSQL, skip, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query characters")
	}
	chars, err := pgx.CollectRows(rows, scanCharacter)
	if err != nil {
		return nil, errors.Wrap(err, "collect characters")
	}
	if chars == nil {
		chars = make([]character.Character, 0)
	}
	return chars, nil
}

func (s *pgSession) Get(ctx context.Context, id int64) (character.Character, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return character.Character{}, err
	}
	rows, err := conn.Query(ctx, getCharacterSQL, id)
	if err != nil {
		return character.Character{}, errors.Wrapf(err, "query character %d", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCharacter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return character.Character{}, character.ErrNotFound
		}
		return character.Character{}, errors.Wrapf(err, "query character %d", id)
	}
	return c, nil
}

func (s *pgSession) Update(ctx context.Context, id int64, patch character.Patch) (character.Character, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return character.Character{}, err
	}
	rows, err := conn.Query(ctx, updateCharacterSQL, id, patch.Name, patch.Story)
	if err != nil {
		return character.Character{}, errors.Wrapf(err, "update character %d", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCharacter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return character.Character{}, character.ErrNotFound
		}
		return character.Character{}, errors.Wrapf(err, "update character %d", id)
	}
	return c, nil
}

func (s *pgSession) Delete(ctx context.Context, id int64) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	res, err := conn.Exec(ctx, deleteCharacterSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete character %d", id)
	}
	if res.RowsAffected() == 0 {
		return character.ErrNotFound
	}
	return nil
}

func scanCharacter(row pgx.CollectableRow) (character.Character, error) {
	var c character.Character
	err := row.Scan(&c.ID, &c.Name, &c.Story)
	return c, err
}
