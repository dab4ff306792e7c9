package domain

// Condition is the coarse weather category fed to the predictor
type Condition string

const (
	ConditionClear        Condition = "clear"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionDrizzle      Condition = "drizzle"
	ConditionThunderstorm Condition = "thunderstorm"
	ConditionSnow         Condition = "snow"
	ConditionFog          Condition = "fog"
)

// ConditionFromCode buckets an OpenWeatherMap condition id.
// Unknown or missing codes map to clear.
func ConditionFromCode(code int) Condition {
	switch {
	case code >= 200 && code < 300:
		return ConditionThunderstorm
	case code >= 300 && code < 400:
		return ConditionDrizzle
	case code >= 500 && code < 600:
		return ConditionRain
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionFog
	case code == 800:
		return ConditionClear
	case code > 800:
		return ConditionCloudy
	default:
		return ConditionClear
	}
}

// WeatherDay is one day of a 7-day forecast. Values are immutable once cached.
type WeatherDay struct {
	Date          string    `json:"date"`
	Temp          float64   `json:"temp"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	Precipitation float64   `json:"precipitation"`
	UVIndex       float64   `json:"uvIndex"`
	Clouds        float64   `json:"clouds"`
	Condition     Condition `json:"condition"`
}

// Snapshot returns the subset of the day embedded in a prediction
func (d WeatherDay) Snapshot() WeatherSnapshot {
	return WeatherSnapshot{
		Temp:          d.Temp,
		Humidity:      d.Humidity,
		Precipitation: d.Precipitation,
		WindSpeed:     d.WindSpeed,
	}
}

// ForecastDays is the fixed forecast horizon
const ForecastDays = 7

// Sri Lanka centre, used for beaches without usable geocoding
const (
	DefaultLat = 7.8731
	DefaultLon = 80.7718
)
