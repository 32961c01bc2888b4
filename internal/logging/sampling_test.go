package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/esgmetrics/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledCore(t *testing.T) {
	base, observed := observer.New(TraceLevel)
	core := newSampledCore(base, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel:  {Initial: 2, Thereafter: 0},
			zapcore.WarnLevel:  {Initial: 1, Thereafter: 2},
			zapcore.ErrorLevel: {Initial: 1, Thereafter: 0},
		},
	})
	logger := zap.New(core)

	for i := 0; i < 5; i++ {
		logger.Info("info")
		logger.Warn("warn")
		logger.Error("error")
		logger.Debug("debug")
	}

	assert.Equal(t, 2, observed.FilterMessage("info").Len())
	// first, then every second one after it: 1, 3, 5
	assert.Equal(t, 3, observed.FilterMessage("warn").Len())
	// Error is never sampled, even when configured.
	assert.Equal(t, 5, observed.FilterMessage("error").Len())
	// Unconfigured levels pass through.
	assert.Equal(t, 5, observed.FilterMessage("debug").Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	base, _ := observer.New(zapcore.InfoLevel)
	assert.Same(t, base, newSampledCore(base, SamplingConfig{}))
}
