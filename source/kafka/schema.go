package kafka

// Schema turns raw record payloads into the values the pipeline consumes.
// Payload ownership transfers to the schema on Deserialize.
type Schema[T any] interface {
	Deserialize(payload []byte) (T, error)

	// EndOfStream reports whether v signals that the stream is finished.
	// When it returns true the source stops reading; v is not emitted.
	EndOfStream(v T) bool
}

// RawSchema passes payloads through untouched and never ends the stream.
type RawSchema struct{}

func (RawSchema) Deserialize(payload []byte) ([]byte, error) { return payload, nil }

func (RawSchema) EndOfStream([]byte) bool { return false }
