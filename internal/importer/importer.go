// Package importer turns remote assignment records into local tasks exactly
// once. Import is idempotent end to end: re-running the same request never
// creates duplicates, and one bad record never sinks the batch.
package importer

import (
	"context"
	"time"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/models"
)

// RemoteRecord is a provider assignment normalized for import.
type RemoteRecord struct {
	RemoteID    string     `json:"remote_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	HTMLURL     string     `json:"html_url,omitempty"`
	Points      float64    `json:"points,omitempty"`
}

// Store is the slice of the storage boundary the importer needs.
type Store interface {
	UserOwnsClass(ctx context.Context, classID, userID string) (bool, error)
	TaskExistsByRemoteID(ctx context.Context, classID, userID, remoteID string) (bool, error)
	InsertTask(ctx context.Context, task *models.Task) (*models.Task, error)
}

// Report summarizes one import run.
type Report struct {
	Imported       []*models.Task `json:"imported"`
	RequestedCount int            `json:"requested_count"`
	ImportedCount  int            `json:"imported_count"`
}

// Importer imports selected remote records into a class.
type Importer struct {
	store  Store
	logger logging.Logger
}

// New creates an importer.
func New(store Store, logger logging.Logger) *Importer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Importer{store: store, logger: logger}
}

// ImportSelected imports the records whose remote IDs appear in selectedIDs
// into the given class. Records already imported are skipped silently;
// malformed records and per-record storage failures are logged and skipped.
// The report counts what was requested and what actually landed.
func (i *Importer) ImportSelected(ctx context.Context, userID, classID string, records []RemoteRecord, selectedIDs []string) (*Report, error) {
	if classID == "" {
		return nil, errors.ValidationError("class ID is required")
	}
	if len(selectedIDs) == 0 {
		return nil, errors.ValidationError("no assignments selected")
	}

	owns, err := i.store.UserOwnsClass(ctx, classID, userID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, errors.NotFoundError("class")
	}

	selected := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}

	report := &Report{
		Imported:       []*models.Task{},
		RequestedCount: len(selected),
	}

	for _, record := range records {
		if !selected[record.RemoteID] {
			continue
		}

		if record.Title == "" {
			i.logger.Warn("skipping malformed remote record",
				logging.Field{Key: "remote_id", Value: record.RemoteID},
				logging.Field{Key: "class_id", Value: classID})
			continue
		}

		exists, err := i.store.TaskExistsByRemoteID(ctx, classID, userID, record.RemoteID)
		if err != nil {
			i.logger.Warn("failed to check existing task, skipping record",
				logging.Field{Key: "remote_id", Value: record.RemoteID},
				logging.Err(err))
			continue
		}
		if exists {
			continue
		}

		task, err := i.store.InsertTask(ctx, &models.Task{
			ClassID:     classID,
			UserID:      userID,
			Title:       record.Title,
			Description: record.Description,
			DueAt:       record.DueAt,
			RemoteID:    record.RemoteID,
			HTMLURL:     record.HTMLURL,
			Points:      record.Points,
			Status:      models.TaskStatusPending,
		})
		if err != nil {
			i.logger.Warn("failed to insert task, skipping record",
				logging.Field{Key: "remote_id", Value: record.RemoteID},
				logging.Err(err))
			continue
		}

		report.Imported = append(report.Imported, task)
	}

	report.ImportedCount = len(report.Imported)
	return report, nil
}
