package instance

import (
	"os"
	"strings"
)

// sources are checked in order; the first non-empty value names this process.
var sources = []string{"HOMECAFE_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID returns an identifier for the running process, used in logs and cron lock owners.
func ID(fallback string) string {
	for _, key := range sources {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return fallback
}
