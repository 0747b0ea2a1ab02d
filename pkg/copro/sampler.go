package copro

// Sampler fills the staging buffer before a transfer.
type Sampler interface {
	Sample(staging []byte)
}

// SampleFunc is func type of Sampler.
type SampleFunc func([]byte)

// Sample implements Sampler.
func (f SampleFunc) Sample(staging []byte) {
	f(staging)
}

// CounterSampler fills each staging buffer with a single byte value
// which increments on every transfer, wrapping at 255.
type CounterSampler struct {
	next byte
}

// Sample implements Sampler.
func (s *CounterSampler) Sample(staging []byte) {
	for i := range staging {
		staging[i] = s.next
	}
	s.next++
}
