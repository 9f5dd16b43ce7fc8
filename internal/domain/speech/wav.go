package speech

import (
	"encoding/binary"
	"time"
)

const wavHeaderSize = 44

// WrapPCM adds a canonical 44-byte WAV header to little-endian PCM samples.
func WrapPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))

	return append(out, pcm...)
}

// PCMDuration returns the playing time of raw PCM data.
func PCMDuration(size, sampleRate, channels, bitsPerSample int) time.Duration {
	byteRate := sampleRate * channels * bitsPerSample / 8
	if byteRate <= 0 {
		return 0
	}
	return time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
}
