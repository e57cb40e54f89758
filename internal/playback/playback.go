// SPDX-License-Identifier: MIT
/*
Package playback previews stereo buffers on the default output device.

It is used off the real-time path, for example to audition a filtered WAV
before writing it. The process may hold only one output context, so the
first Play fixes the sample rate for the lifetime of the process.
*/
package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	applog "seedscope/internal/log"
)

const component = applog.Component("Playback")

const pollInterval = 10 * time.Millisecond

var (
	ctxOnce sync.Once
	otoCtx  *oto.Context
	ctxRate int
	ctxErr  error
)

func outputContext(sampleRate int) (*oto.Context, error) {
	ctxOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, ctxErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
		})
		if ctxErr != nil {
			ctxErr = fmt.Errorf("open output: %w", ctxErr)
			return
		}
		<-ready
		ctxRate = sampleRate
		component.Debugf("output context ready at %d Hz", sampleRate)
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	if ctxRate != sampleRate {
		return nil, fmt.Errorf("output already open at %d Hz, cannot play %d Hz", ctxRate, sampleRate)
	}
	return otoCtx, nil
}

// Interleave encodes left and right as interleaved little-endian float32
// frames. The shorter channel bounds the frame count.
func Interleave(left, right []float32) []byte {
	n := min(len(left), len(right))
	buf := make([]byte, 0, n*8)
	for i := range n {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(left[i]))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(right[i]))
	}
	return buf
}

// Play blocks until the buffers have been played or ctx is done.
func Play(ctx context.Context, sampleRate float64, left, right []float32) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %v", sampleRate)
	}
	c, err := outputContext(int(math.Round(sampleRate)))
	if err != nil {
		return err
	}

	player := c.NewPlayer(bytes.NewReader(Interleave(left, right)))
	defer player.Close()

	player.Play()
	component.Debugf("playing %d frames", min(len(left), len(right)))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}
