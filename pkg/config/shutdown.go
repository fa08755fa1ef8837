package config

import (
	"fmt"
	"strings"
	"time"
)

// maxShutdownTimeout stays below the default Kubernetes termination grace period.
const maxShutdownTimeout = 30 * time.Second

// ShutdownConfig bounds how long the HTTP servers and the tracer get to stop once a signal arrives.
// The RPC server always drains its accepted requests first.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	if c.Timeout > maxShutdownTimeout {
		return fmt.Errorf("shutdown timeout %s exceeds %s", c.Timeout, maxShutdownTimeout)
	}
	return nil
}

// CoversRequest reports whether a request running for at most requestTimeout can finish within
// the shutdown budget.
func (c *ShutdownConfig) CoversRequest(requestTimeout time.Duration) bool {
	return c.Timeout >= requestTimeout
}
