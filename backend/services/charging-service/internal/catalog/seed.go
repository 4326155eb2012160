package catalog

import "chargex/backend/services/charging-service/internal/models"

// DefaultStations is the built-in Bangalore network.
func DefaultStations() []models.Station {
	return []models.Station{
		{ID: "station-001", Name: "ChargeX Indiranagar", Location: "100 Feet Rd, Indiranagar, Bangalore", Lat: 12.9784, Lng: 77.6408, Available: true, PowerKW: 150, RatePerKWh: 20.5, RateCryptoPerKWh: 0.25},
		{ID: "station-002", Name: "ChargeX Whitefield Hub", Location: "ITPL Main Rd, Whitefield, Bangalore", Lat: 12.9697, Lng: 77.7499, Available: true, PowerKW: 120, RatePerKWh: 22.0, RateCryptoPerKWh: 0.27},
		{ID: "station-003", Name: "ChargeX Electronic City", Location: "Phase 1, Electronic City, Bangalore", Lat: 12.8458, Lng: 77.6663, Available: false, PowerKW: 50, RatePerKWh: 19.5, RateCryptoPerKWh: 0.24},
		{ID: "station-004", Name: "ChargeX Koramangala", Location: "80 Feet Rd, 4th Block, Koramangala, Bangalore", Lat: 12.9338, Lng: 77.6341, Available: true, PowerKW: 100, RatePerKWh: 21.0, RateCryptoPerKWh: 0.26},
		{ID: "station-005", Name: "ChargeX MG Road", Location: "MG Road, Central Bangalore", Lat: 12.9758, Lng: 77.6096, Available: true, PowerKW: 200, RatePerKWh: 23.5, RateCryptoPerKWh: 0.29},
		{ID: "station-006", Name: "ChargeX Hebbal", Location: "Bellary Road, Hebbal, Bangalore", Lat: 13.0365, Lng: 77.5963, Available: true, PowerKW: 150, RatePerKWh: 21.5, RateCryptoPerKWh: 0.26},
		{ID: "station-007", Name: "ChargeX Jayanagar", Location: "11th Main Rd, 4th Block, Jayanagar, Bangalore", Lat: 12.9299, Lng: 77.5933, Available: true, PowerKW: 100, RatePerKWh: 20.0, RateCryptoPerKWh: 0.24},
	}
}
