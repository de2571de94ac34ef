package publisher

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to the outlet stream under key
	Publish(key string, message []byte) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
