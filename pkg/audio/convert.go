package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Converter converts Frames to a target format. It logs a warning on the
// first format mismatch and on the first misaligned frame.
// Create one per stream; not designed for shared use across goroutines.
type Converter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts a frame to the target format. A frame already in the
// target format is returned unchanged. Resampling happens before channel
// conversion. Misaligned frames come back with nil Data.
func (c *Converter) Convert(frame Frame) Frame {
	src := frame.Format
	if !src.Valid() || len(frame.Data)%(2*src.Channels) != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: misaligned PCM data, dropping frame",
				"bytes", len(frame.Data),
				"format", src.String(),
			)
		})
		return Frame{Format: c.Target, Timestamp: frame.Timestamp}
	}

	if src == c.Target {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Debug("audio format mismatch: converting",
			"from", src.String(),
			"to", c.Target.String(),
		)
	})

	pcm := Resample16(frame.Data, src.Channels, src.SampleRate, c.Target.SampleRate)
	pcm = Remix16(pcm, src.Channels, c.Target.Channels)
	return Frame{Data: pcm, Format: c.Target, Timestamp: frame.Timestamp}
}

// Remix16 converts interleaved PCM16 between channel counts. Mono is
// duplicated onto every output channel; anything else is averaged down to
// mono first. Trailing bytes that do not form a whole frame are ignored.
func Remix16(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to {
		return pcm
	}
	frames := len(pcm) / (2 * from)
	out := make([]byte, frames*2*to)
	for i := range frames {
		var sum int32
		for ch := range from {
			sum += int32(readInt16(pcm, i*from+ch))
		}
		// Averaging int16 values cannot leave the int16 range.
		v := int16(sum / int32(from))
		for ch := range to {
			binary.LittleEndian.PutUint16(out[(i*to+ch)*2:], uint16(v))
		}
	}
	return out
}

// Resample16 resamples interleaved PCM16 with the given channel count from
// srcRate to dstRate using linear interpolation. Invalid rates or equal rates
// return the input unchanged.
func Resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 {
		return pcm
	}
	srcFrames := len(pcm) / (2 * channels)
	if srcRate == dstRate || srcFrames < 1 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*2*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := min(srcIdx+1, srcFrames-1)

		for ch := range channels {
			s0 := readInt16(pcm, srcIdx*channels+ch)
			s1 := readInt16(pcm, next*channels+ch)
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(v))
		}
	}
	return out
}

// readInt16 returns the idx-th int16 sample of pcm.
func readInt16(pcm []byte, idx int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[idx*2:]))
}
