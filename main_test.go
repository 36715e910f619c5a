package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-optics/exposure.report/internal/timeutil"
	"github.com/kestrel-optics/exposure.report/internal/vision"
	"github.com/kestrel-optics/exposure.report/internal/vision/pipeline"
)

func TestSyntheticFrame(t *testing.T) {
	src := &SyntheticSource{Width: 160, Height: 120, Crop: vision.FullFrame()}
	f := src.frame(1, time.Now())

	require.NotNil(t, f.Buffer)
	assert.Equal(t, 160, f.Buffer.Width)
	assert.Equal(t, 120, f.Buffer.Height)
	assert.Equal(t, 160*4, f.Buffer.Stride)
	assert.Len(t, f.Buffer.Pixels, 120*160*4)

	require.NotNil(t, f.Model)
	require.NotNil(t, f.Model.Raster)
	assert.Equal(t, 40, f.Model.Raster.Width)
	assert.Equal(t, 30, f.Model.Raster.Height)

	// All three synthetic classes should appear in the raster.
	seen := map[byte]bool{}
	for _, c := range f.Model.Raster.Data {
		seen[c] = true
	}
	assert.True(t, seen[synthClassSky], "sky missing from raster")
	assert.True(t, seen[synthClassGround], "ground missing from raster")
	assert.True(t, seen[synthClassPerson], "person missing from raster")

	// The raster center lands inside the subject block.
	center := f.Model.Raster.Data[15*40+20]
	assert.Equal(t, byte(synthClassPerson), center)

	require.NotNil(t, f.Saliency)
	assert.Greater(t, f.Saliency.Data[60*160+80], f.Saliency.Data[0],
		"saliency should peak at frame center")

	assert.Greater(t, f.Device.ApertureN, 0.0)
	assert.Greater(t, f.Device.ShutterS, 0.0)
	assert.Greater(t, f.Device.ISO, 0.0)
}

func TestSyntheticBrightnessWanders(t *testing.T) {
	src := &SyntheticSource{Width: 64, Height: 48}
	now := time.Now()
	a := src.frame(1, now)
	b := src.frame(63, now) // sin(63/40) near its peak

	assert.NotEqual(t, a.Device.ShutterS, b.Device.ShutterS)
	assert.NotEqual(t, a.Buffer.Pixels[0], b.Buffer.Pixels[0])
}

func TestSyntheticSourceRun(t *testing.T) {
	src := &SyntheticSource{Width: 32, Height: 24, FPS: 200}
	ctx, cancel := context.WithCancel(context.Background())

	frames := make(chan *pipeline.Frame, 16)
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(f *pipeline.Frame) {
			select {
			case frames <- f:
			default:
			}
		})
	}()

	select {
	case f := <-frames:
		assert.Equal(t, uint64(1), f.Seq)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for synthetic frame")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSyntheticDefaults(t *testing.T) {
	cfg := (&SyntheticSource{}).sanitized()
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
	assert.Equal(t, 10.0, cfg.FPS)
	assert.Equal(t, vision.FullFrame(), cfg.Crop)
	assert.NotNil(t, cfg.Clock)
}

func TestSyntheticSourcePacing(t *testing.T) {
	// Drive the capture loop with a mock clock: one frame per advanced
	// period, none before.
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	src := &SyntheticSource{Width: 32, Height: 24, FPS: 10, Clock: clock}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan *pipeline.Frame, 4)
	go func() {
		_ = src.Run(ctx, func(f *pipeline.Frame) { frames <- f })
	}()

	for i := 1; i <= 3; i++ {
		// Poll: Run may not have registered its ticker yet.
		var got *pipeline.Frame
		deadline := time.Now().Add(5 * time.Second)
		for got == nil {
			clock.Advance(100 * time.Millisecond)
			select {
			case got = <-frames:
			case <-time.After(10 * time.Millisecond):
				if time.Now().After(deadline) {
					t.Fatalf("timed out waiting for frame %d", i)
				}
			}
		}
		assert.Equal(t, uint64(i), got.Seq)
	}
}
