package utils

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, logrus.DebugLevel, NewLogger().GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, NewLogger().GetLevel())

	t.Setenv("LOG_LEVEL", "nonsense")
	assert.Equal(t, logrus.InfoLevel, NewLogger().GetLevel())
}

func TestNewLogger_ReturnsIndependentInstances(t *testing.T) {
	a := NewLogger()
	b := NewLogger()
	require.NotSame(t, a, b)

	a.SetLevel(logrus.ErrorLevel)
	assert.NotEqual(t, a.GetLevel(), b.GetLevel())
}
