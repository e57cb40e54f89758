// SPDX-License-Identifier: MIT
package broadcast

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"seedscope/pkg/utils"
)

func takeAll(t *testing.T, c *Consumer) ([]float32, []float32) {
	t.Helper()
	l := make([]float32, c.Window())
	r := make([]float32, c.Window())
	if !c.Take(l, r) {
		t.Fatalf("Take() = false, want a ready snapshot")
	}
	return l, r
}

func TestExactWindowFill(t *testing.T) {
	b := New(16)
	c := NewConsumer(4)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	b.Push([]float32{1, 2, 3}, []float32{-1, -2, -3}, 48000)
	if c.Ready() {
		t.Fatal("consumer ready after fewer than W samples")
	}

	b.Push([]float32{4}, []float32{-4}, 48000)
	if !c.Ready() {
		t.Fatal("consumer not ready after exactly W samples")
	}

	l, r := takeAll(t, c)
	if !slices.Equal(l, []float32{1, 2, 3, 4}) {
		t.Errorf("left = %v, want [1 2 3 4]", l)
	}
	if !slices.Equal(r, []float32{-1, -2, -3, -4}) {
		t.Errorf("right = %v, want [-1 -2 -3 -4]", r)
	}
	if c.Ready() {
		t.Error("Take() did not reset the ready flag")
	}
}

func TestFewerThanWindowNoFill(t *testing.T) {
	b := New(2048)
	c := NewConsumer(1024)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	block := make([]float32, 100)
	for range 10 {
		b.Push(block, block, 48000)
	}
	if c.Ready() {
		t.Fatal("consumer filled after 1000 of 1024 samples")
	}

	dst := []float32{42}
	if c.Take(dst, dst) {
		t.Fatal("Take() = true without a snapshot")
	}
	if dst[0] != 42 {
		t.Errorf("Take() modified dst while not ready: %v", dst)
	}
}

func TestWrapAroundFill(t *testing.T) {
	b := New(8)
	c := NewConsumer(4)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	ramp := utils.Ramp(6, 1)
	b.Push(ramp, ramp, 44100)
	l, _ := takeAll(t, c)
	if !slices.Equal(l, []float32{1, 2, 3, 4}) {
		t.Fatalf("first snapshot = %v, want [1 2 3 4]", l)
	}

	// Samples 5 and 6 arrived while the consumer was ready and do not count.
	ramp = utils.Ramp(4, 7)
	b.Push(ramp, ramp, 44100)
	l, _ = takeAll(t, c)
	if !slices.Equal(l, []float32{7, 8, 9, 10}) {
		t.Errorf("wrapped snapshot = %v, want [7 8 9 10]", l)
	}
}

func TestReadyConsumerIsNotOverwritten(t *testing.T) {
	b := New(32)
	c := NewConsumer(4)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	first := utils.Ramp(4, 1)
	b.Push(first, first, 48000)
	more := utils.Ramp(12, 100)
	b.Push(more, more, 48000)

	l, _ := takeAll(t, c)
	if !slices.Equal(l, first) {
		t.Errorf("snapshot = %v, want untouched %v", l, first)
	}
}

func TestResetRestartsCount(t *testing.T) {
	b := New(32)
	c := NewConsumer(4)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	ramp := utils.Ramp(4, 1)
	b.Push(ramp, ramp, 48000)
	c.Reset()

	b.Push(ramp[:3], ramp[:3], 48000)
	if c.Ready() {
		t.Fatal("consumer refilled before W fresh samples")
	}
	b.Push(ramp[3:], ramp[3:], 48000)
	if !c.Ready() {
		t.Fatal("consumer not refilled after W fresh samples")
	}
}

func TestMismatchedChannelLengths(t *testing.T) {
	b := New(16)
	c := NewConsumer(2)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer() error = %v", err)
	}

	b.Push([]float32{1, 2, 3}, []float32{9}, 48000)
	if c.Ready() {
		t.Fatal("only min(len) samples should be pushed")
	}
	b.Push(nil, []float32{1}, 48000)
	if c.Ready() {
		t.Fatal("empty push should not advance the count")
	}
}

func TestSampleRateAndFilledSignal(t *testing.T) {
	b := New(16)
	reg, err := b.Register(2)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	defer reg.Close()

	b.Push([]float32{1, 2}, []float32{1, 2}, 96000)

	select {
	case <-reg.Filled():
	case <-time.After(time.Second):
		t.Fatal("no Filled() signal after fill")
	}
	if got := reg.SampleRate(); got != 96000 {
		t.Errorf("SampleRate() = %v, want 96000", got)
	}
}

func TestAddConsumerErrors(t *testing.T) {
	b := New(64)

	tests := []struct {
		name   string
		window int
		want   error
	}{
		{"Zero Window", 0, ErrInvalidWindow},
		{"Negative Window", -3, ErrInvalidWindow},
		{"Too Large", 65, ErrWindowTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.AddConsumer(NewConsumer(tt.window)); !errors.Is(err, tt.want) {
				t.Errorf("AddConsumer() error = %v, want %v", err, tt.want)
			}
			if _, err := b.Register(tt.window); !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}

	c := NewConsumer(64)
	if err := b.AddConsumer(c); err != nil {
		t.Fatalf("AddConsumer(W == R) error = %v", err)
	}
	if err := b.AddConsumer(c); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second AddConsumer() error = %v, want %v", err, ErrAlreadyRegistered)
	}
	if err := b.AddConsumer(nil); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("AddConsumer(nil) error = %v, want %v", err, ErrInvalidWindow)
	}
}

func TestRegistrationClose(t *testing.T) {
	b := New(16)
	reg, err := b.Register(4)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.ID == "" {
		t.Error("registration has no ID")
	}
	if b.NumConsumers() != 1 {
		t.Fatalf("NumConsumers() = %d, want 1", b.NumConsumers())
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if b.NumConsumers() != 0 {
		t.Fatalf("NumConsumers() after Close = %d, want 0", b.NumConsumers())
	}

	ramp := utils.Ramp(8, 1)
	b.Push(ramp, ramp, 48000)
	if reg.Ready() {
		t.Error("deregistered consumer was filled")
	}

	// A removed consumer may be registered again.
	if err := b.AddConsumer(reg.Consumer); err != nil {
		t.Errorf("re-AddConsumer() error = %v", err)
	}
	if err := New(16).AddConsumer(reg.Consumer); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("AddConsumer() on foreign broadcaster error = %v, want %v", err, ErrAlreadyRegistered)
	}
}

func TestRemoveKeepsOtherConsumers(t *testing.T) {
	b := New(16)
	a, c, d := NewConsumer(2), NewConsumer(2), NewConsumer(2)
	for _, x := range []*Consumer{a, c, d} {
		if err := b.AddConsumer(x); err != nil {
			t.Fatalf("AddConsumer() error = %v", err)
		}
	}
	b.RemoveConsumer(c)
	b.RemoveConsumer(c)
	b.RemoveConsumer(nil)

	b.Push([]float32{1, 2}, []float32{1, 2}, 48000)
	if !a.Ready() || !d.Ready() {
		t.Error("remaining consumers were not filled")
	}
	if c.Ready() {
		t.Error("removed consumer was filled")
	}
}

// TestPushHotPath verifies the audio-thread push does not allocate.
func TestPushHotPath(t *testing.T) {
	b := New(DefaultCapacity)
	consumers := []*Consumer{NewConsumer(512), NewConsumer(1024), NewConsumer(2048)}
	for _, c := range consumers {
		if err := b.AddConsumer(c); err != nil {
			t.Fatalf("AddConsumer() error = %v", err)
		}
	}

	left := utils.GenerateSineWave(256, 48000, 440, 0.5)
	right := utils.GenerateSineWave(256, 48000, 880, 0.5)

	allocs := testing.AllocsPerRun(100, func() {
		b.Push(left, right, 48000)
		for _, c := range consumers {
			c.Reset()
		}
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in Push, got %.1f", allocs)
	}
}

func TestConcurrentPushAndTake(t *testing.T) {
	b := New(256)
	reg, err := b.Register(64)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	defer reg.Close()

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		block := utils.Ramp(32, 0)
		for range 500 {
			b.Push(block, block, 48000)
		}
	}()

	l := make([]float32, 64)
	r := make([]float32, 64)
	taken := 0
	for {
		select {
		case <-reg.Filled():
			if reg.Take(l, r) {
				taken++
				// Each snapshot is two consecutive ramp blocks.
				if l[0] != 0 || l[63] != 31 {
					t.Errorf("torn snapshot: first %v last %v", l[0], l[63])
				}
			}
		case <-done:
			wg.Wait()
			if taken == 0 {
				t.Error("no snapshots taken")
			}
			return
		}
	}
}

func BenchmarkPush(b *testing.B) {
	br := New(DefaultCapacity)
	c := NewConsumer(1024)
	if err := br.AddConsumer(c); err != nil {
		b.Fatal(err)
	}
	block := utils.GenerateSineWave(512, 48000, 440, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		br.Push(block, block, 48000)
		c.Reset()
	}
}
