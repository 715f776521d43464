package character

import (
	"context"

	"github.com/go-faster/errors"
)

const (
	DefaultSkip  = 0
	DefaultLimit = 100

	// MaxNameLength mirrors the VARCHAR bound of the name column.
	MaxNameLength = 255
)

var ErrNotFound = errors.New("character not found")

type Character struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Story string `json:"story"`
}

type Create struct {
	Name  string
	Story string
}

// Patch overwrites only the non-nil fields.
type Patch struct {
	Name  *string
	Story *string
}

// Session is a short-lived storage handle scoped to one request.
// Release must be called once the caller is done with it.
type Session interface {
	Create(ctx context.Context, in Create) (Character, error)
	List(ctx context.Context, skip, limit int) ([]Character, error)
	Get(ctx context.Context, id int64) (Character, error)
	Update(ctx context.Context, id int64, patch Patch) (Character, error)
	Delete(ctx context.Context, id int64) error
	Release()
}

type Store interface {
	Acquire(ctx context.Context) (Session, error)
}
