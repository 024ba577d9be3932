package database

import (
	"fmt"
	"time"
)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// RetryWithBackoff runs operation until it succeeds or maxRetries attempts
// have failed, doubling the delay between attempts.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying", map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
