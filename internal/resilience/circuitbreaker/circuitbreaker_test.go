package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		TripRatio:   0.5,
		MinSamples:  4,
	}
}

func TestExecute_PassesThroughWhileClosed(t *testing.T) {
	cb := New(testConfig())

	out, err := cb.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
}

func TestExecute_ErrorsPropagateWhileClosed(t *testing.T) {
	cb := New(testConfig())
	cause := errors.New("portal down")

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, cause
	})
	assert.ErrorIs(t, err, cause)
	assert.False(t, cb.IsOpen(), "one failure below MinSamples must not trip")
}

func TestExecute_TripsAtFailureRatio(t *testing.T) {
	cb := New(testConfig())
	cause := errors.New("portal down")

	for range 4 {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, cause
		})
	}
	require.True(t, cb.IsOpen())

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open circuit must not invoke the call")
}

func TestExecute_StaysClosedBelowMinSamples(t *testing.T) {
	cb := New(testConfig())
	cause := errors.New("portal down")

	for range 3 {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, cause
		})
	}
	assert.False(t, cb.IsOpen())
}

func TestExecute_MixedOutcomesBelowRatioStayClosed(t *testing.T) {
	cb := New(testConfig())
	cause := errors.New("portal down")

	for i := range 8 {
		_, _ = cb.Execute(func() (interface{}, error) {
			if i%3 == 0 {
				return nil, cause
			}
			return nil, nil
		})
	}
	assert.False(t, cb.IsOpen(), "one failure in three is under the 0.5 trip ratio")
}

func TestPortalAPIConfig(t *testing.T) {
	cfg := PortalAPIConfig("zillow")
	assert.Equal(t, "portal-zillow", cfg.Name)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.InDelta(t, 0.6, cfg.TripRatio, 0.001)
	assert.Equal(t, uint32(5), cfg.MinSamples)

	cb := New(cfg)
	assert.Equal(t, "portal-zillow", cb.Name())
}
