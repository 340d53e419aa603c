package canary

import (
	"github.com/atlasops/atlas/pkg/fault"
)

// Fault profiles the canary injects into planner traffic. Each maps to a
// concrete fault placement: on the planner itself or forwarded to a branch.
const (
	ProfileNone               = "none"
	ProfileWeatherError       = "weather_error"
	ProfileWeatherRateLimited = "weather_rate_limited"
	ProfileWeatherHighLatency = "weather_high_latency"
	ProfileEventsError        = "events_error"
	ProfileEventsRateLimited  = "events_rate_limited"
	ProfilePartialFailure     = "partial_failure"
)

// DefaultWeights is the stock traffic mix: half the plans are clean, the
// rest exercise one failure mode each.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		ProfileNone:               0.50,
		ProfileWeatherError:       0.10,
		ProfileWeatherRateLimited: 0.08,
		ProfileWeatherHighLatency: 0.07,
		ProfileEventsError:        0.08,
		ProfileEventsRateLimited:  0.07,
		ProfilePartialFailure:     0.10,
	}
}

// planRequest mirrors the travel planner's /plan wire contract.
type planRequest struct {
	Destination  string        `json:"destination"`
	Fault        *fault.Config `json:"fault,omitempty"`
	WeatherFault *fault.Config `json:"weather_fault,omitempty"`
	EventsFault  *fault.Config `json:"events_fault,omitempty"`
}

// planResponse mirrors the fields of the planner reply the canary inspects.
type planResponse struct {
	PlanID      string `json:"plan_id"`
	Destination string `json:"destination"`
	Partial     bool   `json:"partial"`
	Errors      []struct {
		Agent string `json:"agent"`
		Type  string `json:"type"`
	} `json:"errors"`
}

// applyProfile sets the fault fields for the chosen profile.
func applyProfile(req *planRequest, profile string) {
	switch profile {
	case ProfileWeatherError:
		req.WeatherFault = &fault.Config{Type: fault.TypeToolError}
	case ProfileWeatherRateLimited:
		req.WeatherFault = &fault.Config{Type: fault.TypeRateLimited}
	case ProfileWeatherHighLatency:
		req.WeatherFault = &fault.Config{Type: fault.TypeHighLatency, DelayMs: 1500}
	case ProfileEventsError:
		req.EventsFault = &fault.Config{Type: fault.TypeError}
	case ProfileEventsRateLimited:
		req.EventsFault = &fault.Config{Type: fault.TypeRateLimited}
	case ProfilePartialFailure:
		req.Fault = &fault.Config{Type: fault.TypePartialFailure}
	}
}

// expectFailure reports whether the profile should surface as a failed or
// partial plan. Rate limits and injected errors degrade a branch; latency
// alone should still produce a complete plan.
func expectFailure(profile string) bool {
	switch profile {
	case ProfileWeatherError, ProfileWeatherRateLimited, ProfileEventsError, ProfileEventsRateLimited:
		return true
	default:
		return false
	}
}
