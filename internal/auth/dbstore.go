package auth

import (
	"context"

	"github.com/raphaelgruber/chatdesk-go/internal/db"
	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

// DBProfileStore adapts the SurrealDB client to the ProfileStore
// interface.
type DBProfileStore struct {
	client *db.Client
}

var _ ProfileStore = (*DBProfileStore)(nil)

func NewDBProfileStore(client *db.Client) *DBProfileStore {
	return &DBProfileStore{client: client}
}

func (s *DBProfileStore) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.client.QueryGetProfileByEmail(ctx, email)
}

func (s *DBProfileStore) CreateProfile(ctx context.Context, email, passwordHash string) (*models.Profile, error) {
	return s.client.QueryCreateProfile(ctx, email, passwordHash)
}
