package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers network failures, non-2xx responses, timeouts and undecodable bodies.
	ErrTransport = errors.New("platform: transport failure")

	// ErrNotFound is returned when the platform does not know the requested device.
	ErrNotFound = errors.New("platform: device not found")

	// ErrUnsupportedMode is returned for HVAC modes the platform cannot express.
	ErrUnsupportedMode = errors.New("platform: unsupported hvac mode")

	// ErrUnsupportedService is returned by CallService for service names the adapter does not map.
	ErrUnsupportedService = errors.New("platform: unsupported service")

	// ErrInvalidDeviceID is returned when an id does not follow the platform's scheme.
	ErrInvalidDeviceID = errors.New("platform: invalid device id")
)

// StatusError records a non-2xx HTTP answer. It unwraps to ErrTransport.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// HTTPStatus extracts the status code of a StatusError anywhere in err's chain.
func HTTPStatus(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}
