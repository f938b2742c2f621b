package compress

// Nop stores documents uncompressed. It is the default codec.
type Nop struct{}

// NewNop creates a codec that returns its input unchanged.
func NewNop() Nop {
	return Nop{}
}

func (Nop) Encode(data []byte) ([]byte, error) {
	return data, nil
}

func (Nop) Decode(data []byte) ([]byte, error) {
	return data, nil
}
