package sound

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Decoded frame size: 16-bit samples, two channels.
const bytesPerFrame = 4

// Probe decodes an MP3 and reports its play duration.
func Probe(b []byte) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	rate := decoder.SampleRate()
	if rate == 0 {
		return 0, errors.New("sound: invalid sample rate")
	}
	seconds := float64(decoder.Length()) / float64(bytesPerFrame*rate)
	return time.Duration(seconds * float64(time.Second)), nil
}
