package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		dev       bool
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{name: "development default", dev: true, wantLevel: logrus.DebugLevel},
		{name: "production default", wantLevel: logrus.InfoLevel, wantJSON: true},
		{name: "explicit level", level: "WARN", dev: true, wantLevel: logrus.WarnLevel},
		{name: "invalid level", level: "loud", wantLevel: logrus.InfoLevel, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_FORMAT", "")
			log := InitLogger(tt.level, tt.dev)

			assert.Equal(t, tt.wantLevel, log.GetLevel())
			_, isJSON := log.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestWithComponent(t *testing.T) {
	entry := WithComponent(logrus.New(), "router")
	assert.Equal(t, "router", entry.Data["component"])
}
