package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModePoller runs the scheduler status poller.
	ServiceModePoller ServiceMode = "poller"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModePoller}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for part := range strings.SplitSeq(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModePoller:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, poller)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PollerConfig contains status poller configuration.
type PollerConfig struct {
	// Interval is the time between poll cycles. It is also the TTL of the cycle lock.
	Interval time.Duration `env:"POLLER_INTERVAL" envDefault:"1m"`

	// Concurrency bounds the number of scheduler queries in flight per cycle.
	Concurrency int `env:"POLLER_CONCURRENCY" envDefault:"8"`

	// BatchSize is the page size used to walk the active jobs; every page is reconciled each cycle.
	BatchSize int `env:"POLLER_BATCH_SIZE" envDefault:"500"`

	// QueryTimeout bounds a single job's status query and reconciliation.
	QueryTimeout time.Duration `env:"POLLER_QUERY_TIMEOUT" envDefault:"20s"`
}

// Sanitize applies guardrails to poller configuration values.
func (p *PollerConfig) Sanitize() {
	if p.Interval < 5*time.Second {
		p.Interval = 5 * time.Second
	}
	p.Concurrency = min(max(p.Concurrency, 1), 64)
	p.BatchSize = min(max(p.BatchSize, 1), 5000)
	if p.QueryTimeout <= 0 {
		p.QueryTimeout = 20 * time.Second
	}
	if p.QueryTimeout > p.Interval {
		p.QueryTimeout = p.Interval
	}
}
