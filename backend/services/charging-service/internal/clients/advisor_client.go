package clients

import "context"

// AdvisorRecommendRequest is sent to the advice backend.
type AdvisorRecommendRequest struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	BatteryLevel float64 `json:"battery_level"`
	MaxPrice     float64 `json:"max_price,omitempty"`
	Speed        string  `json:"speed,omitempty"`
	MaxDistance  float64 `json:"max_distance,omitempty"`
}

// AdvisorRecommendResponse is the backend's recommendation.
type AdvisorRecommendResponse struct {
	Action           string  `json:"action"`
	StationID        string  `json:"station_id"`
	Reasoning        string  `json:"reasoning"`
	EstimatedCost    float64 `json:"estimated_cost"`
	EstimatedMinutes int     `json:"estimated_time"`
}

// AdvisorMonitorRequest describes a running session.
type AdvisorMonitorRequest struct {
	SessionID      string  `json:"session_id"`
	EnergyKWh      float64 `json:"energy_delivered"`
	ElapsedMinutes float64 `json:"time_elapsed"`
	CurrentCost    float64 `json:"current_cost"`
	PowerKW        float64 `json:"charging_rate"`
}

// AdvisorMonitorResponse is the backend's advice for a running session.
type AdvisorMonitorResponse struct {
	Action                    string `json:"action"`
	Reasoning                 string `json:"reasoning"`
	Advice                    string `json:"advice"`
	EstimatedRemainingMinutes int    `json:"estimated_remaining_time"`
}

// AdvisorClient calls the advice generator service.
type AdvisorClient struct {
	base   *BaseClient
	apiKey string
}

// NewAdvisorClient returns client.
func NewAdvisorClient(baseURL, apiKey string, httpClient HTTPDoer) *AdvisorClient {
	return &AdvisorClient{base: NewBaseClient(baseURL, httpClient), apiKey: apiKey}
}

// Recommend calls POST /recommendations.
func (c *AdvisorClient) Recommend(ctx context.Context, req AdvisorRecommendRequest) (AdvisorRecommendResponse, error) {
	var out AdvisorRecommendResponse
	err := c.base.PostJSON(ctx, "/recommendations", req, &out, WithHeader("X-API-Key", c.apiKey))
	return out, err
}

// Monitor calls POST /monitor.
func (c *AdvisorClient) Monitor(ctx context.Context, req AdvisorMonitorRequest) (AdvisorMonitorResponse, error) {
	var out AdvisorMonitorResponse
	err := c.base.PostJSON(ctx, "/monitor", req, &out, WithHeader("X-API-Key", c.apiKey))
	return out, err
}
