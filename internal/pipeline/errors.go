package pipeline

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// InputError reports a malformed request field: date, coordinates, polygon
// or variant.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NoImageryError is returned when no scene matches the location and window,
// even without the cloud-cover filter.
type NoImageryError struct {
	Location string
	Window   translate.DateWindow
}

func (e *NoImageryError) Error() string {
	return fmt.Sprintf("no image found for %s between %s and %s", e.Location, e.Window.StartDate(), e.Window.EndDate())
}

// RemoteError wraps a failure of the scene catalog or the compute service.
// Pixel budget overflows match earthengine.ErrComputeBudgetExceeded.
type RemoteError struct {
	Stage string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// FileWriteError reports an output artifact that could not be written.
type FileWriteError struct {
	Artifact string
	Err      error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Artifact, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err was caused by the request itself.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// IsNoImagery reports whether err means no scene was found.
func IsNoImagery(err error) bool {
	var noImagery *NoImageryError
	return errors.As(err, &noImagery)
}
