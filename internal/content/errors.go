package content

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetGone means the referenced entity no longer exists.
	ErrTargetGone = errors.New("content: target gone")
	// ErrConcurrentModification means the persist step found the target changed or deleted underneath it.
	ErrConcurrentModification = errors.New("content: concurrent modification")
	// ErrTransitionAmbiguous means a read-state transition arrived without its before snapshot.
	ErrTransitionAmbiguous = errors.New("content: transition ambiguous")
)

// ConfigurationError reports a kind that is not registered, or registered
// twice. It is a deployment defect and is never retried.
type ConfigurationError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("content: configuration error for kind %q: %s", e.Kind, e.Reason)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsBenign reports whether err is an outcome the engine drops silently.
func IsBenign(err error) bool {
	return errors.Is(err, ErrTargetGone) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrTransitionAmbiguous)
}
