package demod

import "fmt"

// stub marks a mode that is declared in the closed set but has no working
// implementation yet. Binding one substitutes the fallback demodulator; it
// must never silently no-op.
//
// TODO: replace the ssb stub with a proper Weaver-method product detector.
func stub(name string) Factory {
	return func() (Demodulator, error) {
		return nil, fmt.Errorf("%w: %s not implemented", ErrUnsupportedMode, name)
	}
}
