package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    zerolog.Level
	}{
		{"info", false, zerolog.InfoLevel},
		{"warn", false, zerolog.WarnLevel},
		{"DEBUG", false, zerolog.DebugLevel},
		{"nonsense", false, zerolog.InfoLevel},
		{"", false, zerolog.InfoLevel},
		{"error", true, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		Setup(tt.level, tt.verbose)
		assert.Equal(t, tt.want, log.Logger.GetLevel(), "level %q verbose %v", tt.level, tt.verbose)
	}
}
