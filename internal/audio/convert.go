package audio

import (
	"fmt"

	"github.com/samber/lo"
)

// maxInputChannels is the widest layout the converter downmixes (7.1).
const maxInputChannels = 8

// converter turns native frames into interleaved 16-bit stereo. The sample
// rate passes through unchanged.
type converter struct {
	in int
}

func newConverter(channels int) (*converter, error) {
	if channels < 1 || channels > maxInputChannels {
		return nil, fmt.Errorf("%w: unsupported layout with %d channels", ErrResamplerInit, channels)
	}
	return &converter{in: channels}, nil
}

// Convert appends f to dst. Layouts wider than stereo follow the FL, FR, FC
// ordering; the center channel is folded into both sides at -3 dB.
func (c *converter) Convert(f Frame, dst []int16) ([]int16, error) {
	if f.Channels != c.in {
		return dst, fmt.Errorf("frame has %d channels, converter expects %d", f.Channels, c.in)
	}

	n := len(f.Samples) / c.in
	for i := 0; i < n; i++ {
		s := f.Samples[i*c.in : (i+1)*c.in]
		var l, r float32
		switch {
		case c.in == 1:
			l, r = s[0], s[0]
		case c.in == 2:
			l, r = s[0], s[1]
		default:
			const centerGain = 0.7071
			l = (s[0] + s[2]*centerGain) / (1 + centerGain)
			r = (s[1] + s[2]*centerGain) / (1 + centerGain)
		}
		dst = append(dst, toInt16(l), toInt16(r))
	}
	return dst, nil
}

func toInt16(v float32) int16 {
	return int16(lo.Clamp(v, -1, 1) * 32767)
}
