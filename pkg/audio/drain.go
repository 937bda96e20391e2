package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a stream's data is not needed,
// e.g. the frames of a [CaptureStream] being shut down.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
