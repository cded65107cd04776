package mqtt

import "errors"

var (
	// ErrNotConnected means the broker is currently unreachable. Paho keeps
	// reconnecting in the background.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects levels other than 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
