// Package weather implements a mock weather MCP server. It serves a
// fixed dataset of city conditions through tools, resources and prompt
// templates, and is the default tool backend for the chat agent.
package weather

import (
	"fmt"
	"strings"
)

// CityWeather is the weather record of one city.
type CityWeather struct {
	City        string `json:"city"`
	Temperature int    `json:"temperature"`
	Conditions  string `json:"conditions"`
	Humidity    int    `json:"humidity"`
	WindSpeed   int    `json:"wind_speed"`
}

// cityKeys preserves the dataset order for stable listings and error
// messages.
var cityKeys = []string{"new_york", "london", "tokyo", "paris"}

var cities = map[string]CityWeather{
	"new_york": {
		City:        "New York",
		Temperature: 72,
		Conditions:  "Partly Cloudy",
		Humidity:    65,
		WindSpeed:   12,
	},
	"london": {
		City:        "London",
		Temperature: 58,
		Conditions:  "Rainy",
		Humidity:    80,
		WindSpeed:   15,
	},
	"tokyo": {
		City:        "Tokyo",
		Temperature: 68,
		Conditions:  "Clear",
		Humidity:    55,
		WindSpeed:   8,
	},
	"paris": {
		City:        "Paris",
		Temperature: 62,
		Conditions:  "Cloudy",
		Humidity:    70,
		WindSpeed:   10,
	},
}

// Cities returns the dataset keys in listing order.
func Cities() []string {
	keys := make([]string, len(cityKeys))
	copy(keys, cityKeys)
	return keys
}

// Lookup returns the weather record for a city key. The key is matched
// case insensitively.
func Lookup(cityKey string) (CityWeather, bool) {
	w, ok := cities[strings.ToLower(cityKey)]
	return w, ok
}

func availableCities() string {
	return strings.Join(cityKeys, ", ")
}

// CurrentWeather renders the current conditions of a city. Unknown
// cities produce an error text rather than a failure, so the model can
// read it and recover.
func CurrentWeather(city string) string {
	key := strings.ToLower(city)
	w, ok := cities[key]
	if !ok {
		return fmt.Sprintf("Error: Unknown city '%s'. Available cities: %s", key, availableCities())
	}

	return fmt.Sprintf(
		"Current weather in %s:\nTemperature: %d°F\nConditions: %s\nHumidity: %d%%\nWind Speed: %d mph",
		w.City, w.Temperature, w.Conditions, w.Humidity, w.WindSpeed,
	)
}

// CompareWeather renders a comparison of two cities including the
// temperature difference.
func CompareWeather(city1, city2 string) string {
	w1, ok1 := cities[strings.ToLower(city1)]
	w2, ok2 := cities[strings.ToLower(city2)]
	if !ok1 || !ok2 {
		return fmt.Sprintf("Error: One or both cities not found. Available cities: %s", availableCities())
	}

	diff := w1.Temperature - w2.Temperature
	relation := "the same temperature"
	if diff > 0 {
		relation = "warmer"
	} else if diff < 0 {
		relation = "cooler"
	}
	if diff < 0 {
		diff = -diff
	}

	return fmt.Sprintf(
		"Weather Comparison:\n\n%s: %d°F, %s\n%s: %d°F, %s\n\nTemperature difference: %d°F (%s is %s)",
		w1.City, w1.Temperature, w1.Conditions,
		w2.City, w2.Temperature, w2.Conditions,
		diff, w1.City, relation,
	)
}

// TemperatureSummary renders aggregate statistics across the whole
// dataset.
func TemperatureSummary() string {
	var sum, maxTemp, minTemp int
	var hottest, coldest string

	for i, key := range cityKeys {
		w := cities[key]
		sum += w.Temperature
		if i == 0 || w.Temperature > maxTemp {
			maxTemp = w.Temperature
			hottest = w.City
		}
		if i == 0 || w.Temperature < minTemp {
			minTemp = w.Temperature
			coldest = w.City
		}
	}
	avg := float64(sum) / float64(len(cityKeys))

	return fmt.Sprintf(
		"Temperature Summary Across All Cities:\n\nAverage Temperature: %.1f°F\nHottest: %s at %d°F\nColdest: %s at %d°F\nRange: %d°F",
		avg, hottest, maxTemp, coldest, minTemp, maxTemp-minTemp,
	)
}

// WeatherReportPrompt renders the user message of the weather_report
// prompt template.
func WeatherReportPrompt(city string) string {
	return fmt.Sprintf(
		"Please provide a detailed weather report for %s. Include temperature, conditions, humidity, and any relevant advice.",
		strings.ToLower(city),
	)
}

// TravelAdvicePrompt renders the user message of the
// travel_weather_advice prompt template.
func TravelAdvicePrompt(origin, destination string) string {
	return fmt.Sprintf(
		"I'm traveling from %s to %s. Compare the weather in both cities and give me advice on what to pack and what to expect.",
		strings.ToLower(origin), strings.ToLower(destination),
	)
}
