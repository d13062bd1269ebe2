package contractor

import (
	"context"
)

// Store persists contractors, their placeholder accounts and import runs.
// Finders return nil (not an error) when nothing matches.
type Store interface {
	FindByLicense(ctx context.Context, number string) (*Contractor, error)
	// FindByName matches the case-insensitive business name exactly.
	FindByName(ctx context.Context, businessName string) ([]Contractor, error)
	// FindByNameKey matches the loose name key within a city.
	FindByNameKey(ctx context.Context, nameKey, city string) ([]Contractor, error)
	Create(ctx context.Context, c *Contractor) error
	Update(ctx context.Context, c *Contractor) error
	// EnsureAccount returns the id of the account with this email, creating
	// it when missing.
	EnsureAccount(ctx context.Context, email, displayName string) (string, error)
	// ListMissingContact pages license-verified contractors lacking a phone,
	// email or website, ordered by id, starting after afterID.
	ListMissingContact(ctx context.Context, afterID string, limit int) ([]Contractor, error)
	Count(ctx context.Context) (int, error)

	CreateImportRun(ctx context.Context, run *ImportRun) error
	FinishImportRun(ctx context.Context, run *ImportRun) error

	Migrate(ctx context.Context) error
	Close() error
}
