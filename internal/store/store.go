// Package store provides the local mirror of persisted tool records.
package store

import (
	"context"

	"github.com/pintegram/toolbot/internal/domain"
)

// Repository defines the interface for the local record mirror. The
// mirror is advisory: it backs duplicate-URL detection and the ops
// listing endpoint, and its failures never abort the wizard flow.
type Repository interface {
	// SaveRecord stores a copy of a record persisted to the external store.
	SaveRecord(ctx context.Context, rec domain.SavedRecord) error

	// DeleteRecord removes the mirror copy by external record ID.
	DeleteRecord(ctx context.Context, recordID string) error

	// FindByURL returns the most recently saved record with the URL, or
	// nil when none exists.
	FindByURL(ctx context.Context, url string) (*domain.SavedRecord, error)

	// ListRecords returns mirrored records sorted by URL ascending,
	// optionally filtered to those containing a single type.
	ListRecords(ctx context.Context, typeFilter string) ([]domain.SavedRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
