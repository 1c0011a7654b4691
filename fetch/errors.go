package fetch

import (
	"context"
	"errors"

	"github.com/use-agent/harvest/models"
)

// categorize wraps raw errors into typed HarvestErrors so callers can
// distinguish timeouts from other fetch failures.
func categorize(err error, code, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewHarvestError(code, msg, err)
	}
}
