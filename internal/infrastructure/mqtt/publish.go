package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// validatePublish checks arguments shared by Publish and PublishAsync.
func (c *Client) validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Publish sends a message and waits for the library to complete the token.
//
// Must not be called from inside a MessageHandler: with ordered delivery
// the handler goroutine is the one that would complete the token.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "id/jihoon/light/control")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := c.validatePublish(topic, payload, qos); err != nil {
		return err
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishAsync hands a message to the library and returns immediately.
//
// The token is observed on a separate goroutine. done, when non-nil, is
// called exactly once with the outcome; validation failures are reported
// synchronously through done as well. Safe to call from a MessageHandler.
func (c *Client) PublishAsync(topic string, payload []byte, qos byte, retained bool, done func(err error)) {
	if err := c.validatePublish(topic, payload, qos); err != nil {
		c.finishAsync(topic, err, done)
		return
	}

	token := c.client.Publish(topic, qos, retained, payload)
	go func() {
		var err error
		if !token.WaitTimeout(defaultPublishTimeout) {
			err = fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
		} else if tokenErr := token.Error(); tokenErr != nil {
			err = fmt.Errorf("%w: %w", ErrPublishFailed, tokenErr)
		}
		c.finishAsync(topic, err, done)
	}()
}

func (c *Client) finishAsync(topic string, err error, done func(err error)) {
	if err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT async publish failed",
				"topic", topic,
				"error", err,
			)
		}
	}
	if done != nil {
		done(err)
	}
}
