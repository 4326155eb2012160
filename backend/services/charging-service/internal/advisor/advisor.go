package advisor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/clients"
	"chargex/backend/services/charging-service/internal/models"
)

const (
	ActionCharge   = "charge"
	ActionContinue = "continue"
	ActionStop     = "stop"
	ActionWait     = "wait"

	stopThresholdKWh    = 30
	typicalSessionMins  = 40
	estimateKWh         = 10
	fullBatteryPercent  = 100
	defaultBatteryLevel = 50
)

// StationSource lists available stations, cheapest first.
type StationSource interface {
	Available() []models.Station
}

// Remote is the external advice generator.
type Remote interface {
	Recommend(ctx context.Context, req clients.AdvisorRecommendRequest) (clients.AdvisorRecommendResponse, error)
	Monitor(ctx context.Context, req clients.AdvisorMonitorRequest) (clients.AdvisorMonitorResponse, error)
}

// Location is a lat/lng pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Preferences narrow the recommendation.
type Preferences struct {
	MaxPrice    float64 `json:"max_price"`
	Speed       string  `json:"speed"`
	MaxDistance float64 `json:"max_distance"`
}

// RecommendRequest asks where to charge.
type RecommendRequest struct {
	Location     Location    `json:"location"`
	BatteryLevel float64     `json:"battery_level"`
	Preferences  Preferences `json:"preferences"`
}

// Recommendation is the advice on where to charge.
type Recommendation struct {
	Action           string  `json:"action"`
	StationID        string  `json:"station_id,omitempty"`
	Reasoning        string  `json:"reasoning"`
	EstimatedCost    float64 `json:"estimated_cost"`
	EstimatedMinutes int     `json:"estimated_time"`
	Simulated        bool    `json:"simulated"`
}

// Advice is guidance for a running session.
type Advice struct {
	SessionID                 string `json:"session_id"`
	Action                    string `json:"action"`
	Reasoning                 string `json:"reasoning"`
	Advice                    string `json:"advice"`
	EstimatedRemainingMinutes int    `json:"estimated_remaining_time"`
	Simulated                 bool   `json:"simulated"`
}

// Advisor produces charging advice, falling back to a local heuristic when the
// remote generator is absent or failing.
type Advisor struct {
	remote   Remote
	stations StationSource
	logger   *zap.Logger
}

// New builds an advisor. remote may be nil.
func New(remote Remote, stations StationSource, logger *zap.Logger) *Advisor {
	return &Advisor{remote: remote, stations: stations, logger: logger}
}

// Recommend suggests a station for the given situation.
func (a *Advisor) Recommend(ctx context.Context, req RecommendRequest) Recommendation {
	if a.remote != nil {
		resp, err := a.remote.Recommend(ctx, clients.AdvisorRecommendRequest{
			Lat:          req.Location.Lat,
			Lng:          req.Location.Lng,
			BatteryLevel: req.BatteryLevel,
			MaxPrice:     req.Preferences.MaxPrice,
			Speed:        req.Preferences.Speed,
			MaxDistance:  req.Preferences.MaxDistance,
		})
		if err == nil {
			return Recommendation{
				Action:           resp.Action,
				StationID:        resp.StationID,
				Reasoning:        resp.Reasoning,
				EstimatedCost:    resp.EstimatedCost,
				EstimatedMinutes: resp.EstimatedMinutes,
			}
		}
		a.logger.Warn("advisor recommend failed, using local heuristic", zap.Error(err))
	}
	return a.simulatedRecommendation(req)
}

// Monitor advises whether to keep charging.
func (a *Advisor) Monitor(ctx context.Context, session models.ChargingSession, powerKW float64) Advice {
	elapsedMinutes := session.ElapsedSeconds / 60
	if a.remote != nil {
		resp, err := a.remote.Monitor(ctx, clients.AdvisorMonitorRequest{
			SessionID:      session.ID,
			EnergyKWh:      session.KWhDelivered,
			ElapsedMinutes: elapsedMinutes,
			CurrentCost:    session.CurrentCost,
			PowerKW:        powerKW,
		})
		if err == nil {
			return Advice{
				SessionID:                 session.ID,
				Action:                    resp.Action,
				Reasoning:                 resp.Reasoning,
				Advice:                    resp.Advice,
				EstimatedRemainingMinutes: resp.EstimatedRemainingMinutes,
			}
		}
		a.logger.Warn("advisor monitor failed, using local heuristic", zap.String("session_id", session.ID), zap.Error(err))
	}

	advice := Advice{
		SessionID:                 session.ID,
		Action:                    ActionContinue,
		Reasoning:                 fmt.Sprintf("Analyzed charging session %s.", session.ID),
		Advice:                    "Continue charging to reach optimal battery level for your journey.",
		EstimatedRemainingMinutes: int(math.Max(0, typicalSessionMins-math.Floor(elapsedMinutes))),
		Simulated:                 true,
	}
	if session.KWhDelivered >= stopThresholdKWh {
		advice.Action = ActionStop
		advice.Advice = "You've charged enough for your needs. Stopping now keeps the cost down."
	}
	return advice
}

func (a *Advisor) simulatedRecommendation(req RecommendRequest) Recommendation {
	battery := req.BatteryLevel
	if battery <= 0 || battery > fullBatteryPercent {
		battery = defaultBatteryLevel
	}

	candidates := a.stations.Available()
	if len(candidates) == 0 {
		return Recommendation{
			Action:    ActionWait,
			Reasoning: fmt.Sprintf("No stations are available right now. Your battery is at %.0f%%.", battery),
			Simulated: true,
		}
	}

	maxPrice := req.Preferences.MaxPrice
	affordable := make([]models.Station, 0, len(candidates))
	for _, st := range candidates {
		if maxPrice <= 0 || st.RateCryptoPerKWh <= maxPrice {
			affordable = append(affordable, st)
		}
	}

	best := candidates[0]
	note := ""
	switch {
	case len(affordable) == 0:
		note = fmt.Sprintf(" It is above your limit of %.2f, no station is cheaper.", maxPrice)
	case strings.EqualFold(req.Preferences.Speed, "fast"):
		best = affordable[0]
		for _, st := range affordable[1:] {
			if st.PowerKW > best.PowerKW {
				best = st
			}
		}
	default:
		best = affordable[0]
	}

	return Recommendation{
		Action:    ActionCharge,
		StationID: best.ID,
		Reasoning: fmt.Sprintf("Based on your battery level of %.0f%%, %s is available at %.2f USDC/kWh with %.0f kW.%s",
			battery, best.Name, best.RateCryptoPerKWh, best.PowerKW, note),
		EstimatedCost:    math.Round(estimateKWh*best.RatePerKWh*100) / 100,
		EstimatedMinutes: int(math.Ceil(estimateKWh / best.PowerKW * 60)),
		Simulated:        true,
	}
}
