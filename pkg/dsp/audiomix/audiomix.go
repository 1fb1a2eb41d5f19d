// Package audiomix combines the audio-enabled VFO streams into the single
// monitor stream.
package audiomix

// Mix sums the contributing buffers with 1/N gain so the combined level
// cannot grow with the number of active channels. Output length equals the
// longest contributor; shorter buffers contribute silence past their end.
func Mix(buffers [][]float32) []float32 {
	longest := 0
	n := 0
	for _, b := range buffers {
		if len(b) == 0 {
			continue
		}
		n++
		if len(b) > longest {
			longest = len(b)
		}
	}
	if n == 0 {
		return nil
	}

	out := make([]float32, longest)
	gain := 1.0 / float32(n)
	for _, b := range buffers {
		for i, s := range b {
			out[i] += s * gain
		}
	}
	return out
}
