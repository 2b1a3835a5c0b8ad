package regen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dentaldir/internal/logging"
	"dentaldir/internal/notifications"
	"dentaldir/internal/services"
	"dentaldir/internal/store"
)

// RollbackPage restores the content a version replaced and marks the version
// rolled back. Rolling back the same version again re-applies the same
// snapshot.
func (p *Processor) RollbackPage(ctx context.Context, versionID string) (*store.ContentVersion, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return nil, services.Wrap(services.ErrValidation, "regen", "rollback", "version_id is required", nil)
	}
	version, err := p.repo.RollbackVersion(ctx, versionID)
	if errors.Is(err, store.ErrPageNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "regen", "rollback",
			fmt.Sprintf("page for version %s no longer exists", versionID), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "regen", "rollback", "Failed to restore content", err)
	}
	if version == nil {
		return nil, services.Wrap(services.ErrNotFound, "regen", "rollback",
			fmt.Sprintf("version %s not found", versionID), nil)
	}

	ctx = services.WithPageID(services.WithJobID(ctx, version.JobID), version.PageID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("page rolled back",
		logging.Event("page_rolled_back"),
		logging.String("version_id", version.ID),
	)
	notifications.Publish(ctx, p.notifier, logger, notifications.EventPageRolledBack, notifications.Payload{
		"pageId":    version.PageID,
		"versionId": version.ID,
		"jobId":     version.JobID,
	})
	return version, nil
}
