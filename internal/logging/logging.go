package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the per-run log file path: <logsDir>/<name>.<start>.log.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.UTC().Format("20060102_150405")),
	)
}
