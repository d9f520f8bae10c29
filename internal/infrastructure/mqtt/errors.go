package mqtt

import "errors"

// Domain errors for the mqtt package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrConnectFailed is returned when the initial broker connection fails.
	ErrConnectFailed = errors.New("mqtt: connect failed")

	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrInvalidTopic is returned when a topic is empty.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS is returned when a QoS level is out of range.
	ErrInvalidQoS = errors.New("mqtt: invalid qos")

	// ErrPublishFailed is returned when a publish does not complete.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
