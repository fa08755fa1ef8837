package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NATSConfig locates the bus that carries the product commands. Url may list several servers
// separated by commas.
type NATSConfig struct {
	Url     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", MaskURL(c.Url)))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if c.Url == "" {
		return fmt.Errorf("NATS URL is not configured")
	}
	for _, server := range strings.Split(c.Url, ",") {
		server = strings.TrimSpace(server)
		if !strings.Contains(server, "://") {
			// the client assumes nats:// for bare host:port entries
			continue
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid NATS URL %q: %w", MaskURL(server), err)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("unsupported NATS URL scheme %q", u.Scheme)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	return nil
}
