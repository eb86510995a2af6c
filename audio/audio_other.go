//go:build !linux

package audio

const Backend = "none"

func NewEnumerator() (Enumerator, error) {
	return nil, ErrUnsupported
}
