package onlineplayers

import "context"

// Target represents a destination for rendered frames.
type Target interface {
	// Update delivers the latest frame to the target.
	Update(ctx context.Context, frame *Frame) error

	// Close releases the target's resources.
	Close() error

	// Name returns a descriptive name for logging.
	Name() string
}
