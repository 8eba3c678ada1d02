package weather

// Export handlers for testing
var (
	HandleCurrentWeather      = handleCurrentWeather
	HandleCompareWeather      = handleCompareWeather
	HandleTemperatureSummary  = handleTemperatureSummary
	HandleWeatherReportPrompt = handleWeatherReportPrompt
	HandleTravelAdvicePrompt  = handleTravelAdvicePrompt
)
