package health

import (
	"context"
	"fmt"
	"strings"
)

// Pinger is implemented by dependencies that can answer a liveness probe,
// such as the voice store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a [Checker] that calls p.Ping.
func Ping(name string, p Pinger) Checker {
	return Checker{
		Name:  name,
		Check: p.Ping,
	}
}

// NoneOf returns an optional [Checker] that degrades readiness while list
// reports any entries, e.g. providers whose circuit breaker is open. list
// is evaluated on every probe; reason prefixes the error.
func NoneOf(name, reason string, list func() []string) Checker {
	return Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			if items := list(); len(items) > 0 {
				return fmt.Errorf("%s: %s", reason, strings.Join(items, ", "))
			}
			return nil
		},
	}
}
