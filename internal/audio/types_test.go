package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// pcm16 builds little-endian 16-bit PCM where every sample has the given
// value.
func pcm16(sample int16, count int) []byte {
	data := make([]byte, count*2)
	for i := 0; i < count; i++ {
		data[i*2] = byte(sample)
		data[i*2+1] = byte(sample >> 8)
	}
	return data
}

func TestPeakAmplitude16Bit(t *testing.T) {
	assert.Equal(t, 0.0, peakAmplitude(nil, 16))
	assert.Equal(t, 0.0, peakAmplitude(pcm16(0, 100), 16))

	// Full-scale negative sample normalizes to 1.0
	assert.InDelta(t, 1.0, peakAmplitude(pcm16(-32768, 10), 16), 0.0001)

	// Half scale
	assert.InDelta(t, 0.5, peakAmplitude(pcm16(16384, 10), 16), 0.0001)

	// Peak, not average: one loud sample among silence dominates
	data := pcm16(0, 100)
	loud := pcm16(16384, 1)
	copy(data[100:], loud)
	assert.InDelta(t, 0.5, peakAmplitude(data, 16), 0.0001)
}

func TestPeakAmplitude8Bit(t *testing.T) {
	silence := []byte{128, 128, 128, 128}
	assert.Equal(t, 0.0, peakAmplitude(silence, 8))

	assert.InDelta(t, 1.0, peakAmplitude([]byte{0}, 8), 0.0001)
	assert.InDelta(t, 0.5, peakAmplitude([]byte{192}, 8), 0.01)
}

func TestUtteranceDuration(t *testing.T) {
	utt := Utterance{
		Data:       make([]byte, 16000*2), // one second of 16kHz mono 16-bit
		SampleRate: 16000,
		Channels:   1,
	}
	assert.Equal(t, time.Second, utt.Duration(16))

	stereo := Utterance{
		Data:       make([]byte, 16000*2*2),
		SampleRate: 16000,
		Channels:   2,
	}
	assert.Equal(t, time.Second, stereo.Duration(16))

	assert.Equal(t, time.Duration(0), Utterance{}.Duration(16))
}
