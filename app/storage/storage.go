// Package storage provides storages of computed scores, sql-backed on top of engine.SQL and redis-backed.
// Each table is represented by a struct with methods implementing business logic for this data type.
// Every storage keeps its rows under the engine's group id, so several setups can share one database.
package storage

import (
	"context"
	"time"
)

const defaultTimeout = 5 * time.Second

// ctxWithTimeout makes a bounded context for a single db call, zero timeout means defaultTimeout
func ctxWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeoutOrDefault(timeout))
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}
