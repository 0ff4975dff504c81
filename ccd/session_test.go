package ccd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNilKeepsDriver(t *testing.T) {
	s := NewSession(nil, nil)
	d := newFakeDriver()
	require.NoError(t, s.Register(d))
	err := s.Register(nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, Driver(d), s.Driver())
	assert.True(t, s.Errors().IsError())
}

func TestNoDriver(t *testing.T) {
	s := NewSession(nil, nil)
	_, err := s.Columns()
	assert.Equal(t, UnsupportedOperation, KindOf(err))
	assert.Equal(t, UnsupportedOperation, KindOf(s.Close()))
	assert.Zero(t, s.Capabilities())
}

func TestUnimplementedIsUnsupported(t *testing.T) {
	s := NewSession(nil, nil)
	require.NoError(t, s.Register(Unimplemented{}))
	err := s.SetupAbort()
	assert.Equal(t, UnsupportedOperation, KindOf(err))
	assert.True(t, IsUnsupported(err))
	assert.Contains(t, err.Error(), "SetupAbort")

	_, err = s.ExposurePhase()
	assert.Equal(t, UnsupportedOperation, KindOf(err), "no PhaseReporter")
	_, _, err = s.Temperature()
	assert.True(t, IsUnsupported(err))
	assert.Contains(t, s.Errors().Report(), "TemperatureGet")
}

func TestSessionExposeAndBias(t *testing.T) {
	var msgs []string
	s := NewSession(NewLogger(func(_ Level, msg string) { msgs = append(msgs, msg) }, BitwiseFilter(LogExposure)), nil)
	d := newFakeDriver()
	require.NoError(t, s.Register(d))
	require.NoError(t, s.SetupDimensions(8, 4, 2, 1, false, Window{}))
	buf, err := s.AllocateBuffer()
	require.NoError(t, err)
	assert.Len(t, buf, 16)

	require.NoError(t, s.Expose(context.Background(), true, time.Time{}, 0, buf))
	require.NoError(t, s.Bias(context.Background(), buf))
	assert.Equal(t, []string{"SetupDimensions", "Expose", "Bias"}, d.Calls())
	assert.Contains(t, msgs, "Expose started")
	assert.NotContains(t, msgs, "SetupDimensions started", "filtered out")

	p, err := s.ExposurePhase()
	require.NoError(t, err)
	assert.Equal(t, PhaseNone, p)
	assert.False(t, s.Errors().IsError())
}

func TestAllocateBufferRejectsEmpty(t *testing.T) {
	s := NewSession(nil, nil)
	require.NoError(t, s.Register(newFakeDriver()))
	_, err := s.AllocateBuffer()
	assert.True(t, errors.Is(err, ErrAllocation))
}

func TestAbortFromAnotherGoroutine(t *testing.T) {
	s := NewSession(nil, nil)
	d := newFakeDriver()
	d.acq.hang = true
	require.NoError(t, s.Register(d))
	require.NoError(t, s.SetupDimensions(2, 2, 1, 1, false, Window{}))
	buf, err := s.AllocateBuffer()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Expose(context.Background(), true, time.Time{}, time.Hour, buf) }()
	require.Eventually(t, func() bool {
		p, _ := s.ExposurePhase()
		return p == PhaseExpose
	}, time.Second, time.Millisecond)
	require.NoError(t, s.AbortExposure())
	assert.True(t, errors.Is(<-done, ErrAborted))
	assert.Equal(t, int(Aborted), CodeOf(s.Errors().Take()))
}

func TestCloseForgetsDriver(t *testing.T) {
	s := NewSession(nil, nil)
	require.NoError(t, s.Register(newFakeDriver()))
	require.NoError(t, s.Close())
	assert.Nil(t, s.Driver())
}
