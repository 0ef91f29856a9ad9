package media

import "fmt"

type AccessErrorKind string

const (
	PermissionDenied AccessErrorKind = "permission-denied"
	DeviceNotFound   AccessErrorKind = "device-not-found"
	DeviceBusy       AccessErrorKind = "device-busy"
)

// AccessError is returned when capture devices cannot be opened.
type AccessError struct {
	Kind AccessErrorKind
	Err  error
}

func (e *AccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media access %s: %v", e.Kind, e.Err)
	}
	return "media access " + string(e.Kind)
}

func (e *AccessError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the person at the keyboard.
func (e *AccessError) UserMessage() string {
	switch e.Kind {
	case PermissionDenied:
		return "Camera and microphone access is required. Please allow permissions and try again."
	case DeviceNotFound:
		return "No camera or microphone found. Please check your devices and try again."
	case DeviceBusy:
		return "Camera or microphone is already in use. Please close other applications and try again."
	default:
		return "Could not access camera or microphone."
	}
}
