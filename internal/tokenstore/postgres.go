package tokenstore

import (
	"context"

	"github.com/mcpcollection/mcpcollection/internal/models"
)

// KeyValues is the slice of *database.DB the Postgres store needs
type KeyValues interface {
	GetValues(ctx context.Context, keys ...string) (map[string]string, error)
	PutValues(ctx context.Context, values map[string]string) error
	DeleteValues(ctx context.Context, keys ...string) error
}

// PostgresStore keeps the session entries in the kv_store table
type PostgresStore struct {
	kv KeyValues
}

// NewPostgresStore creates a store on top of kv
func NewPostgresStore(kv KeyValues) *PostgresStore {
	return &PostgresStore{kv: kv}
}

func (p *PostgresStore) Load(ctx context.Context) (*models.Session, error) {
	values, err := p.kv.GetValues(ctx, TokenKey, UserInfoKey)
	if err != nil {
		return nil, err
	}
	return decode(values)
}

// Save writes both entries in one transaction
func (p *PostgresStore) Save(ctx context.Context, session *models.Session) error {
	values, err := encode(session)
	if err != nil {
		return err
	}
	return p.kv.PutValues(ctx, values)
}

func (p *PostgresStore) Clear(ctx context.Context) error {
	return p.kv.DeleteValues(ctx, TokenKey, UserInfoKey)
}
