package services

import (
	"testing"

	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return l
}
