package weather

import (
	"fmt"
	"math/rand"
	"time"
)

// ToolDefinition describes an agent tool in the shape recorded on
// invoke_agent spans (gen_ai.request.functions).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

const (
	toolCurrentWeather    = "get_current_weather"
	toolForecast          = "get_forecast"
	toolHistoricalWeather = "get_historical_weather"
)

func toolDefinitions() []ToolDefinition {
	locationParam := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "City name, e.g. San Francisco",
			},
		},
		"required": []string{"location"},
	}
	return []ToolDefinition{
		{Name: toolCurrentWeather, Description: "Get the current weather for a location", Parameters: locationParam},
		{Name: toolForecast, Description: "Get a multi-day weather forecast for a location", Parameters: locationParam},
		{Name: toolHistoricalWeather, Description: "Get historical weather data for a location", Parameters: locationParam},
	}
}

var conditions = []string{"sunny", "partly cloudy", "overcast", "light rain", "thunderstorms", "foggy", "windy", "snow"}

// runTool produces the simulated tool result. Latency is 100-400ms to look
// like a real backing API.
func runTool(rng *rand.Rand, tool, location string) (map[string]any, time.Duration) {
	latency := time.Duration(100+rng.Intn(300)) * time.Millisecond

	switch tool {
	case toolForecast:
		days := make([]map[string]any, 0, 3)
		for i := 1; i <= 3; i++ {
			days = append(days, map[string]any{
				"day":       i,
				"high_c":    10 + rng.Intn(20),
				"low_c":     rng.Intn(12),
				"condition": conditions[rng.Intn(len(conditions))],
			})
		}
		return map[string]any{"location": location, "forecast": days}, latency

	case toolHistoricalWeather:
		return map[string]any{
			"location":      location,
			"period":        "last 30 days",
			"avg_temp_c":    8 + rng.Intn(15),
			"max_temp_c":    18 + rng.Intn(15),
			"min_temp_c":    rng.Intn(8),
			"rainy_days":    rng.Intn(15),
			"avg_condition": conditions[rng.Intn(len(conditions))],
		}, latency

	default:
		return map[string]any{
			"location":    location,
			"temperature": fmt.Sprintf("%d°C", 5+rng.Intn(25)),
			"condition":   conditions[rng.Intn(len(conditions))],
			"humidity":    fmt.Sprintf("%d%%", 40+rng.Intn(50)),
			"wind":        fmt.Sprintf("%d km/h", 5+rng.Intn(30)),
		}, latency
	}
}

func summarizeResult(tool, location string, result map[string]any) string {
	switch tool {
	case toolForecast:
		return fmt.Sprintf("Here is the 3-day forecast for %s. Expect changing conditions; pack for both sun and rain.", location)
	case toolHistoricalWeather:
		return fmt.Sprintf("Over the last 30 days %s averaged %v°C with %v rainy days.", location, result["avg_temp_c"], result["rainy_days"])
	default:
		return fmt.Sprintf("The weather in %s is currently %v at %v with humidity around %v.", location, result["condition"], result["temperature"], result["humidity"])
	}
}
