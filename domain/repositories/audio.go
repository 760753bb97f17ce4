package repositories

// AudioDecoder turns an inbound encoded audio payload into mono float32
// samples at the requested rate. Failures wrap ErrDecode so the session can
// treat them as per-message and recoverable.
type AudioDecoder interface {
	Decode(data []byte, targetRate int) ([]float32, error)
}
