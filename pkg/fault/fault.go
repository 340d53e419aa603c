// Package fault implements request-scoped fault injection for the ATLAS
// demo agents. Faults arrive as part of the request body, are gated by a
// probability, and drive error paths, artificial latency, and degraded
// responses so the observability stack has realistic failures to show.
package fault

import (
	"math/rand"
	"time"
)

// Fault types understood by the agents. Not every agent honors every type;
// unknown types are ignored.
const (
	TypeTimeout            = "timeout"
	TypeToolTimeout        = "tool_timeout"
	TypeToolError          = "tool_error"
	TypeError              = "error"
	TypeRateLimited        = "rate_limited"
	TypeHighLatency        = "high_latency"
	TypeHallucination      = "hallucination"
	TypeTokenLimitExceeded = "token_limit_exceeded"
	TypeWrongTool          = "wrong_tool"
	TypeWrongCity          = "wrong_city"
	TypeEmpty              = "empty"
	TypePartialFailure     = "partial_failure"
	TypeFanOutTimeout      = "fan_out_timeout"
)

// DefaultHighLatencyDelay is applied when a high_latency fault carries no
// explicit delay.
const DefaultHighLatencyDelay = 2500 * time.Millisecond

// Config is the fault descriptor carried in agent request bodies.
type Config struct {
	Type        string  `json:"type,omitempty"`
	DelayMs     int     `json:"delay_ms,omitempty"`
	Probability float64 `json:"probability,omitempty"`
	Tool        string  `json:"tool,omitempty"`
	WrongCity   string  `json:"wrong_city,omitempty"`
}

// Active reports whether the config describes a fault at all.
func (c *Config) Active() bool {
	return c != nil && c.Type != ""
}

// Triggered rolls the probability gate. A zero probability means the fault
// always fires, matching how ad-hoc fault requests omit the field.
func (c *Config) Triggered(rng *rand.Rand) bool {
	if !c.Active() {
		return false
	}
	p := c.Probability
	if p <= 0 {
		p = 1.0
	}
	if p >= 1.0 {
		return true
	}
	if rng == nil {
		return rand.Float64() < p
	}
	return rng.Float64() < p
}

// Delay returns the artificial latency for a high_latency fault.
func (c *Config) Delay() time.Duration {
	if c == nil || c.DelayMs <= 0 {
		return DefaultHighLatencyDelay
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Choice is a named outcome with a selection weight.
type Choice struct {
	Name   string
	Weight float64
}

// Selector picks choices at random proportionally to their weights.
// It is used by the canary to decide which fault profile (if any) to
// inject into each planner invocation.
type Selector struct {
	choices []Choice
	total   float64
	rng     *rand.Rand
}

// NewSelector builds a weighted selector. Choices with non-positive weight
// are dropped. A nil rng falls back to the shared package source.
func NewSelector(choices []Choice, rng *rand.Rand) *Selector {
	s := &Selector{rng: rng}
	for _, c := range choices {
		if c.Weight <= 0 {
			continue
		}
		s.choices = append(s.choices, c)
		s.total += c.Weight
	}
	return s
}

// Pick returns the name of a weighted-random choice, or "" if the selector
// has no usable choices.
func (s *Selector) Pick() string {
	if s == nil || len(s.choices) == 0 {
		return ""
	}
	var roll float64
	if s.rng == nil {
		roll = rand.Float64() * s.total
	} else {
		roll = s.rng.Float64() * s.total
	}
	for _, c := range s.choices {
		roll -= c.Weight
		if roll < 0 {
			return c.Name
		}
	}
	return s.choices[len(s.choices)-1].Name
}

// Names returns the choice names in selection order.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.choices))
	for _, c := range s.choices {
		names = append(names, c.Name)
	}
	return names
}
