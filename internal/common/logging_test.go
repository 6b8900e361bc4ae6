package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerWithOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("warn", &buf)

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Warn().Str("asset", "bitcoin").Msg("no history")
	assert.Contains(t, buf.String(), `"asset":"bitcoin"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithOutput("debug", &buf).WithComponent("market")
	l.Debug().Msg("fetch")
	assert.Contains(t, buf.String(), `"component":"market"`)
}

func TestSilentLogger(t *testing.T) {
	l := NewSilentLogger()
	assert.NotPanics(t, func() { l.Error().Msg("nothing") })
}
