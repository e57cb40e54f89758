// SPDX-License-Identifier: MIT
package dsp

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"golang.org/x/sync/errgroup"
)

// cancelCheck is how many outputs a channel computes between context checks.
const cancelCheck = 4096

// Apply convolves both channels with h and returns newly allocated results
// of the same length as the inputs.
func Apply(ctx context.Context, h []float64, srcL, srcR []float32) (l, r []float32, err error) {
	l = make([]float32, len(srcL))
	r = make([]float32, len(srcR))
	if err := ApplyInto(ctx, l, r, h, srcL, srcR); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// ApplyInto computes y[i] = sum(h[n] * x[i-n]) for each channel, treating
// samples before the start as zero. Each channel writes
// min(len(dst), len(src)) samples; the rest of dst is left unchanged.
// The two channels are convolved concurrently; ApplyInto returns when both
// are done, or with the context's error once either notices cancellation.
// A cancelled call leaves dst partially written.
func ApplyInto(ctx context.Context, dstL, dstR []float32, h []float64, srcL, srcR []float32) error {
	if len(h) == 0 {
		return ctx.Err()
	}

	// Reversed kernel so each output is a plain dot product.
	rev := make([]float64, len(h))
	for i, v := range h {
		rev[len(h)-1-i] = v
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return convolveChannel(ctx, dstL, srcL, rev) })
	g.Go(func() error { return convolveChannel(ctx, dstR, srcR, rev) })
	return g.Wait()
}

func convolveChannel(ctx context.Context, dst, src []float32, rev []float64) error {
	n := min(len(dst), len(src))
	if n == 0 {
		return ctx.Err()
	}

	pad := len(rev) - 1
	padded := make([]float64, pad+n)
	for i, s := range src[:n] {
		padded[pad+i] = float64(s)
	}

	for i := range n {
		if i%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		dst[i] = float32(floats.Dot(rev, padded[i:i+len(rev)]))
	}
	return nil
}
