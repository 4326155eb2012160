package service

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultFullChargeSeconds    = 10800
	defaultTickSeconds          = 300
	defaultTickInterval         = time.Second
	defaultInitialCreditSeconds = 60
)

// ProgressModel projects charging progress from elapsed wall time.
// Every TickInterval of wall time credits TickSeconds of simulated charging.
type ProgressModel struct {
	FullChargeSeconds    float64
	TickSeconds          float64
	TickInterval         time.Duration
	InitialCreditSeconds float64
}

// DefaultProgressModel returns the 3h / 300s-per-second model.
func DefaultProgressModel() ProgressModel {
	return ProgressModel{
		FullChargeSeconds:    defaultFullChargeSeconds,
		TickSeconds:          defaultTickSeconds,
		TickInterval:         defaultTickInterval,
		InitialCreditSeconds: defaultInitialCreditSeconds,
	}
}

func (m ProgressModel) withDefaults() ProgressModel {
	d := DefaultProgressModel()
	if m.FullChargeSeconds <= 0 {
		m.FullChargeSeconds = d.FullChargeSeconds
	}
	if m.TickSeconds <= 0 {
		m.TickSeconds = d.TickSeconds
	}
	if m.TickInterval <= 0 {
		m.TickInterval = d.TickInterval
	}
	if m.InitialCreditSeconds < 0 {
		m.InitialCreditSeconds = 0
	}
	return m
}

// Elapsed returns simulated charging seconds at now for a session started at started.
func (m ProgressModel) Elapsed(started, now time.Time) float64 {
	ticks := 0.0
	if d := now.Sub(started); d > 0 {
		ticks = math.Floor(float64(d) / float64(m.TickInterval))
	}
	return m.clamp(m.InitialCreditSeconds + ticks*m.TickSeconds)
}

// Delivered returns energy delivered after elapsed seconds, capped at requested.
func (m ProgressModel) Delivered(requested, elapsed float64) float64 {
	if elapsed >= m.FullChargeSeconds {
		return requested
	}
	return math.Min(requested, requested*elapsed/m.FullChargeSeconds)
}

func (m ProgressModel) clamp(elapsed float64) float64 {
	return math.Max(0, math.Min(elapsed, m.FullChargeSeconds))
}

// Cost is kwh * rate rounded to two decimals.
func Cost(kwh, rate float64) float64 {
	return decimal.NewFromFloat(kwh).Mul(decimal.NewFromFloat(rate)).Round(2).InexactFloat64()
}
