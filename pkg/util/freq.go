package util

import "fmt"

func MHzToString(hz int) string {
	return fmt.Sprintf("%0.4f MHz", float64(hz)/1e6)
}

// KHzToString formats a signed offset, keeping the sign visible for offsets
// below wideband center.
func KHzToString(hz int) string {
	return fmt.Sprintf("%+0.1f kHz", float64(hz)/1e3)
}

// FrequencyRange returns the lowest and highest of the given frequencies.
func FrequencyRange(freqs ...int) (low, high int) {
	if len(freqs) == 0 {
		return 0, 0
	}
	low, high = freqs[0], freqs[0]
	for _, freq := range freqs[1:] {
		if freq < low {
			low = freq
		}
		if freq > high {
			high = freq
		}
	}
	return
}
