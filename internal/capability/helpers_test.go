package capability_test

import (
	"time"

	"github.com/flemzord/ctxpack/internal/provider"
)

func capabilityHealth(backoff time.Duration) provider.HealthConfig {
	return provider.HealthConfig{InitialBackoff: backoff, MaxBackoff: backoff}
}
