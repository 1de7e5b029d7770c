package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageTimestamp formats a capture time for image file names:
//
//	2006_01_02_15_04_05_000000000
func ImageTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.Format("2006_01_02_15_04_05.000000000"), ".", "_")
}

// NewRunID returns a fresh 8-hex-character run id.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// FPSInterval converts frames-per-second into a sampling interval.
func FPSInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}
