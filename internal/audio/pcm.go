package audio

import (
	"encoding/binary"
	"math"
)

// RMS computes the root-mean-square amplitude of a PCM16LE buffer,
// normalized to [0, 1]. A buffer too short to form a single sample has an
// RMS of 0. A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		v := float64(s) / 32768.0
		sum += v * v
	}

	return math.Sqrt(sum / float64(n))
}

// BytesToFloat32 converts a PCM16LE buffer to normalized 32-bit float
// samples in [-1, 1], the input format of the inference engine. A trailing
// odd byte is ignored.
func BytesToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return nil
	}

	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
		samples[i] = float32(s) / 32768.0
	}

	return samples
}

// Int16ToBytes encodes 16-bit samples as PCM16LE. Used by tests and the
// WAV decoder to round-trip audio buffers.
func Int16ToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(s))
	}
	return buf
}
