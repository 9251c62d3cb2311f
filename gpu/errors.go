package gpu

import "errors"

var (
	// ErrDeviceAcquisition means no usable adapter, device or queue could be obtained.
	ErrDeviceAcquisition = errors.New("gpu: device acquisition failed")

	// ErrDevice wraps failures reported by the device while building or
	// recording work.
	ErrDevice = errors.New("gpu: device operation failed")

	// ErrMapFailed is returned when the staging buffer could not be mapped.
	ErrMapFailed = errors.New("gpu: buffer map failed")

	// ErrChannelDropped is returned when the map callback was abandoned
	// without reporting a result.
	ErrChannelDropped = errors.New("gpu: map completion dropped")

	ErrMapInFlight      = errors.New("gpu: staging buffer already mapped or pending")
	ErrNotMapped        = errors.New("gpu: staging buffer not mapped")
	ErrBufferTooLarge   = errors.New("gpu: buffer exceeds device limits")
	ErrDispatchTooLarge = errors.New("gpu: workgroup grid exceeds device limits")
	ErrEmptyMatrix      = errors.New("gpu: matrix has a zero dimension")
	ErrInvalidConfig    = errors.New("gpu: invalid configuration")
)
