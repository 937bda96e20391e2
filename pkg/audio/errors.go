package audio

import "errors"

var (
	// ErrPermissionDenied is returned when the operating system or audio server
	// refuses access to the capture device.
	ErrPermissionDenied = errors.New("audio: permission denied")

	// ErrDeviceUnavailable is returned when no usable capture or output device
	// exists, or the device backend is not installed.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")

	// ErrDecodeFailure is returned for inbound payloads that cannot be decoded
	// into PCM samples.
	ErrDecodeFailure = errors.New("audio: decode failure")
)
