package repositories

import "context"

// HealthChecker is implemented by adapters that can probe their upstream.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
