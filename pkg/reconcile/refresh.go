package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// RefreshEnabled refreshes every enabled repository the backend holds, one
// at a time. Cancellation is checked before each repository; a canceled
// run reports what it managed so far with ctx.Err() among the errors.
func (e *Engine) RefreshEnabled(ctx context.Context) Report {
	repos, err := e.Backend.ListRepositories(ctx)
	if err != nil {
		return Report{Err: fmt.Errorf("list repositories: %w", err)}
	}
	report := Report{OK: true}
	var errs []error
	for _, r := range repos {
		if err := ctx.Err(); err != nil {
			report.OK = false
			errs = append(errs, err)
			e.Logger.Warn().Int("refreshed", len(report.Refreshed)).Msg("refresh canceled")
			break
		}
		if !r.Enabled {
			continue
		}
		if err := e.Backend.RefreshRepository(ctx, r.ID); err != nil {
			report.OK = false
			errs = append(errs, fmt.Errorf("refresh %s: %w", r.Alias, err))
			e.Logger.Error().Err(err).Str("alias", r.Alias).Msg("refresh failed")
			continue
		}
		report.Refreshed = append(report.Refreshed, r.ID)
	}
	report.Err = errors.Join(errs...)
	return report
}
