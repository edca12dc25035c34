package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1

	// FormatExtensible is the WAVE_FORMAT_EXTENSIBLE code.
	FormatExtensible = 0xFFFE
)

var (
	// ErrNotWAV is returned for data without a RIFF/WAVE header.
	ErrNotWAV = errors.New("audio is not a WAV file")

	// ErrUnsupportedFormat is returned for WAV data that is not 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Clip is decoded 16-bit little-endian PCM ready for an Output.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / (2 * c.Channels)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip has no audio.
func (c *Clip) Empty() bool {
	return c == nil || len(c.PCM) == 0
}

// DecodeWAV parses a RIFF/WAVE byte stream. Chunks other than "fmt " and
// "data" are skipped. A data chunk whose declared size runs past the end of
// the stream (as streamed responses often have) is truncated.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		clip    Clip
		bits    int
		haveFmt bool
	)

	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) || size < 0 {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if format != FormatPCM && format != FormatExtensible {
				return nil, fmt.Errorf("%w: format code %d", ErrUnsupportedFormat, format)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrUnsupportedFormat)
			}
			clip.PCM = data[body:end]
		}

		// Chunks are word aligned.
		off = end + (size & 1)
	}

	switch {
	case !haveFmt:
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedFormat)
	case bits != 16:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bits)
	case clip.Channels < 1 || clip.Channels > 2:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, clip.Channels)
	case clip.SampleRate <= 0:
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, clip.SampleRate)
	}

	// Drop a trailing half frame.
	frame := 2 * clip.Channels
	clip.PCM = clip.PCM[:len(clip.PCM)/frame*frame]

	return &clip, nil
}

// EncodeWAV wraps 16-bit PCM in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, HeaderSize, HeaderSize+dataSize)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], FormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	return append(out, pcm...)
}

// Convert returns the clip's PCM at sampleRate with channels channels,
// resampling linearly and up/down-mixing as needed.
func (c *Clip) Convert(sampleRate, channels int) []byte {
	if c.Empty() {
		return nil
	}
	if c.SampleRate == sampleRate && c.Channels == channels {
		return c.PCM
	}

	inFrames := len(c.PCM) / (2 * c.Channels)
	outFrames := int(int64(inFrames) * int64(sampleRate) / int64(c.SampleRate))
	out := make([]byte, outFrames*channels*2)

	sample := func(frame, ch int) float64 {
		if frame >= inFrames {
			frame = inFrames - 1
		}
		if c.Channels == 1 {
			ch = 0
		}
		i := (frame*c.Channels + ch) * 2
		return float64(int16(binary.LittleEndian.Uint16(c.PCM[i:])))
	}

	ratio := float64(c.SampleRate) / float64(sampleRate)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		i := int(pos)
		frac := pos - float64(i)

		for ch := 0; ch < channels; ch++ {
			var v float64
			if channels == 1 && c.Channels == 2 {
				l := lerp(sample(i, 0), sample(i+1, 0), frac)
				r := lerp(sample(i, 1), sample(i+1, 1), frac)
				v = (l + r) / 2
			} else {
				v = lerp(sample(i, ch), sample(i+1, ch), frac)
			}
			binary.LittleEndian.PutUint16(out[(f*channels+ch)*2:], uint16(int16(v)))
		}
	}

	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
