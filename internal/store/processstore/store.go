// Package processstore persists wizard processes.
package processstore

import (
	"context"
	"errors"

	"rental-process/internal/models"
)

var (
	ErrProcessNotFound    = errors.New("PROCESS_NOT_FOUND")
	ErrProcessWriteFailed = errors.New("PROCESS_WRITE_FAILED")
	ErrProcessReadFailed  = errors.New("PROCESS_READ_FAILED")
)

// Store is the remote process store. Empty tenantID or unitID means "not provided".
// Update applies a patch; it never overwrites sections the patch does not name.
type Store interface {
	Create(ctx context.Context, payload models.Payload, step models.Step, tenantID, unitID string) (string, error)
	Update(ctx context.Context, id string, patch models.Patch, step models.Step, tenantID, unitID string) error
	Get(ctx context.Context, id string) (*models.Process, error)
	SetStatus(ctx context.Context, id string, status models.ProcessStatus) error
}
