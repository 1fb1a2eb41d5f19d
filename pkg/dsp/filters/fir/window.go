package fir

import "math"

type WindowFunc func(int) []float32

type WindowType int

const (
	Hamming WindowType = iota
	Hann
	Blackman
)

// Worst-case stopband attenuation per window, used to size the tap count for
// a requested transition width.
var windowMaxAttenuation = map[WindowType]int{
	Hamming:  53,
	Hann:     44,
	Blackman: 74,
}

var windowFuncs = map[WindowType]WindowFunc{
	Hamming:  HammingWindow,
	Hann:     HannWindow,
	Blackman: BlackmanWindow,
}

func HammingWindow(ntaps int) []float32 {
	ret := make([]float32, ntaps)
	M := float64(ntaps - 1)
	for i := 0; i < ntaps; i++ {
		ret[i] = float32(0.54 - 0.46*math.Cos((2.0*math.Pi*float64(i))/M))
	}
	return ret
}

func HannWindow(ntaps int) []float32 {
	ret := make([]float32, ntaps)
	M := float64(ntaps - 1)
	for i := 0; i < ntaps; i++ {
		ret[i] = float32(0.5 - 0.5*math.Cos((2*math.Pi*float64(i))/M))
	}
	return ret
}

func BlackmanWindow(ntaps int) []float32 {
	ret := make([]float32, ntaps)
	M := float64(ntaps - 1)
	for i := 0; i < ntaps; i++ {
		fi := float64(i)
		ret[i] = float32(0.42 - 0.5*math.Cos((2*math.Pi*fi)/M) +
			0.08*math.Cos((4*math.Pi*fi)/M))
	}
	return ret
}

// NumTaps sizes a filter for the window's attenuation and the requested
// transition width, forced odd so the filter stays symmetric about a center
// tap.
func NumTaps(sampleRate, transitionWidth float64, winType WindowType) int {
	ntaps := int(float64(windowMaxAttenuation[winType]) * sampleRate / (22.0 * transitionWidth))
	ntaps |= 1
	return ntaps
}
