package degrade

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCorrID generates a correlation ID: a base36 millisecond timestamp plus a
// random suffix. It links a user-facing error to the server-side log entry.
func NewCorrID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return ts + "-" + suffix
}
