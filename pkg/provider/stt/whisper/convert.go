package whisper

import (
	"encoding/binary"
	"errors"
)

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. The input length must be
// even (two bytes per sample); any trailing odd byte is silently ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// wavHeaderSize is the length of a canonical RIFF/WAVE PCM header.
const wavHeaderSize = 44

// stripWAVHeader removes the RIFF header from a canonical 16-bit PCM WAV
// payload, returning the raw sample data. It validates only the RIFF and
// WAVE magic values; exotic chunk layouts are rejected.
func stripWAVHeader(data []byte) ([]byte, error) {
	if len(data) < wavHeaderSize {
		return nil, errors.New("wav payload shorter than header")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE payload")
	}
	return data[wavHeaderSize:], nil
}
