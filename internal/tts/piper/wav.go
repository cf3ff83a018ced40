package piper

import (
	"bytes"
	"encoding/binary"
)

// pcmFormat describes raw PCM as announced by audio-start.
type pcmFormat struct {
	SampleRate int
	Channels   int
	Width      int // bytes per sample
}

// apply overrides fields present in an audio-start event's data.
func (f *pcmFormat) apply(data map[string]any) {
	if v, ok := data["rate"].(float64); ok && v > 0 {
		f.SampleRate = int(v)
	}
	if v, ok := data["channels"].(float64); ok && v > 0 {
		f.Channels = int(v)
	}
	if v, ok := data["width"].(float64); ok && v > 0 {
		f.Width = int(v)
	}
}

// encodeWAV wraps PCM in a canonical 44-byte-header RIFF/WAVE container.
func encodeWAV(pcm []byte, f pcmFormat) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	le(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(16)) // fmt chunk size
	le(uint16(1))  // PCM
	le(uint16(f.Channels))
	le(uint32(f.SampleRate))
	le(uint32(f.SampleRate * f.Channels * f.Width)) // byte rate
	le(uint16(f.Channels * f.Width))                // block align
	le(uint16(f.Width * 8))                         // bits per sample

	buf.WriteString("data")
	le(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
