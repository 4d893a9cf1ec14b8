package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/logger"
)

func Test_New_RejectsUnknownLevel(t *testing.T) {
	_, err := logger.New("loud")

	assert.Error(t, err)
}

func Test_New_AcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		l, err := logger.New(level)

		require.NoError(t, err, level)
		assert.NotNil(t, l.StdLogger())
	}
}
