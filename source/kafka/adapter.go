package kafka

// EmitFunc delivers one deserialized value downstream. The source invokes it
// while holding the checkpoint lock, paired with the offset-vector advance
// for the record that produced the value.
type EmitFunc[T any] func(v T) error
