package models

// Station is read-only reference data for a charging point.
type Station struct {
	ID               string  `yaml:"id" json:"id"`
	Name             string  `yaml:"name" json:"name"`
	Location         string  `yaml:"location" json:"location,omitempty"`
	Lat              float64 `yaml:"lat" json:"lat,omitempty"`
	Lng              float64 `yaml:"lng" json:"lng,omitempty"`
	Available        bool    `yaml:"available" json:"available"`
	PowerKW          float64 `yaml:"powerKw" json:"power_kw"`
	RatePerKWh       float64 `yaml:"ratePerKwh" json:"rate_per_kwh"`
	RateCryptoPerKWh float64 `yaml:"rateCryptoPerKwh" json:"rate_crypto_per_kwh"`
}
