package fir

import "math"

// MakeLowPass designs windowed-sinc low-pass taps with unity (times gain)
// response at DC.
func MakeLowPass(gain, sampleRate, cutFrequency, transitionWidth float64, winType WindowType) []float32 {
	ntaps := NumTaps(sampleRate, transitionWidth, winType)
	return MakeLowPassFixed(gain, sampleRate, cutFrequency, ntaps, winType)
}

// MakeLowPassFixed designs a low-pass with an explicit tap count, forced
// odd so the filter stays symmetric about a center tap.
func MakeLowPassFixed(gain, sampleRate, cutFrequency float64, ntaps int, winType WindowType) []float32 {
	ntaps |= 1
	taps := make([]float32, ntaps)
	w := windowFuncs[winType](ntaps)

	M := (ntaps - 1) / 2
	fwT0 := 2 * math.Pi * cutFrequency / sampleRate

	for i := -M; i <= M; i++ {
		if i == 0 {
			taps[i+M] = float32(fwT0 / math.Pi * float64(w[i+M]))
		} else {
			fi := float64(i)
			taps[i+M] = float32(math.Sin(fi*fwT0) / (fi * math.Pi) * float64(w[i+M]))
		}
	}

	fmax := float64(taps[M])
	for i := 1; i <= M; i++ {
		fmax += 2 * float64(taps[i+M])
	}
	gain /= fmax

	for i := 0; i < ntaps; i++ {
		taps[i] = float32(float64(taps[i]) * gain)
	}
	return taps
}
