package catalog

import (
	"context"

	"github.com/dmitrijs2005/estatematch/internal/server/models"
)

// Repository reads listings and contacts.
type Repository interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	GetProperties(ctx context.Context, ids []string) ([]models.Property, error)
	ListAvailableProperties(ctx context.Context) ([]models.Property, error)
	ListContacts(ctx context.Context) ([]models.Contact, error)
	GetContactByUser(ctx context.Context, userID string) (*models.Contact, error)
}
