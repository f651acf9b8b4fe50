package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("batchqueue:job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("batchqueue:ratelimit:%s", keyPrefix)
}
