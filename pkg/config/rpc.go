package config

import (
	"fmt"
	"strings"
	"time"
)

// RPCConfig configures the NATS request/reply listener.
type RPCConfig struct {
	SubjectPrefix string        `koanf:"subjectprefix"`
	Queue         string        `koanf:"queue"`
	Workers       int           `koanf:"workers"`
	Buffer        int           `koanf:"buffer"`
	Timeout       time.Duration `koanf:"timeout"`
}

const (
	defaultRPCWorkers = 4
	defaultRPCBuffer  = 64
)

// String returns a string representation of the RPC configuration.
func (c *RPCConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- RPC ---\n")
	b.WriteString(fmt.Sprintf("  subjectprefix: %s\n", c.SubjectPrefix))
	b.WriteString(fmt.Sprintf("  queue: %s\n", c.Queue))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	b.WriteString(fmt.Sprintf("  buffer: %d\n", c.Buffer))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *RPCConfig) Validate() error {
	if c.SubjectPrefix == "" {
		return fmt.Errorf("RPCConfig: subject prefix is not configured")
	}
	if strings.ContainsAny(c.SubjectPrefix, " *>") {
		return fmt.Errorf("RPCConfig: subject prefix must not contain spaces or wildcards: %q", c.SubjectPrefix)
	}
	if c.Queue == "" {
		return fmt.Errorf("RPCConfig: queue group is not configured")
	}
	if c.Workers <= 0 {
		c.Workers = defaultRPCWorkers
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultRPCBuffer
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("RPCConfig: timeout must be greater than zero")
	}
	return nil
}
