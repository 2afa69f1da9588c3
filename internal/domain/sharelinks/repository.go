package sharelinks

import (
	"context"
	"errors"
)

var ErrRepoNotFound = errors.New("share link not found")

type Repository interface {
	Create(ctx context.Context, l ShareLink) error
	GetByID(ctx context.Context, id string) (ShareLink, error)
	ListByIssuer(ctx context.Context, issuerID string) ([]ShareLink, error)

	// IncrementAccess suma 1 al contador y registra la redención, atómico
	// (increment-and-return): escaneos concurrentes no se pisan.
	IncrementAccess(ctx context.Context, id string, entry Redemption) (int64, error)

	// ListRedeemedBy: links que un usuario autenticado ya redimió
	// (la vista "shared with me" de los proveedores).
	ListRedeemedBy(ctx context.Context, userID string) ([]ShareLink, error)
}
