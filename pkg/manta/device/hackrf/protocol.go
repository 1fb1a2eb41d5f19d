package hackrf

import "encoding/binary"

// Vendor control requests understood by the board firmware. Only the subset
// the receive path needs is declared here.
const (
	reqSetTransceiverMode         uint8 = 1
	reqSetSampleRate              uint8 = 6
	reqSetBasebandFilterBandwidth uint8 = 7
	reqSetFreq                    uint8 = 16
	reqAmpEnable                  uint8 = 17
	reqSetLNAGain                 uint8 = 19
	reqAntennaEnable              uint8 = 23
	reqSetUIEnable                uint8 = 37
)

// Transceiver mode register values.
const (
	transceiverModeOff     uint16 = 0
	transceiverModeReceive uint16 = 1
)

// encodeFreq splits a tuning frequency into the two little-endian uint32
// words the firmware expects: whole MHz, then the Hz remainder.
func encodeFreq(hz uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hz/1e6))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(hz%1e6))
	return buf
}

// encodeSampleRate is the rate in Hz followed by the fixed divisor word.
func encodeSampleRate(hz int) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hz))
	binary.LittleEndian.PutUint32(buf[4:8], 1)
	return buf
}

// splitBandwidth packs a filter bandwidth into the request's value and index
// fields: low 16 bits in value, high 16 bits in index.
func splitBandwidth(hz int) (value, index uint16) {
	return uint16(hz & 0xFFFF), uint16(uint32(hz) >> 16)
}

func boolByte(on bool) []byte {
	if on {
		return []byte{1}
	}
	return []byte{0}
}
