package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	libconfig "chargex/backend/libs/config"
	"chargex/backend/services/charging-service/internal/models"
)

// Catalog is the read-only station lookup.
type Catalog struct {
	mu       sync.RWMutex
	stations map[string]models.Station
	order    []string
}

type seedFile struct {
	Stations []models.Station `yaml:"stations"`
}

// New builds a catalog from the given stations, validating each entry.
func New(stations []models.Station) (*Catalog, error) {
	c := &Catalog{stations: make(map[string]models.Station, len(stations))}
	for _, st := range stations {
		if err := validate(st); err != nil {
			return nil, err
		}
		if _, dup := c.stations[st.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate station %q", models.ErrValidation, st.ID)
		}
		c.stations[st.ID] = st
		c.order = append(c.order, st.ID)
	}
	return c, nil
}

// Load reads stations from a YAML seed file, or returns the built-in set when path is empty.
// Seed entries without a rate_per_kwh get defaultRate.
func Load(path string, defaultRate float64) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return New(DefaultStations())
	}
	var seed seedFile
	if err := libconfig.LoadFile(path, &seed); err != nil {
		return nil, err
	}
	if len(seed.Stations) == 0 {
		return nil, errors.New("catalog: seed file has no stations")
	}
	for i := range seed.Stations {
		if seed.Stations[i].RatePerKWh == 0 {
			seed.Stations[i].RatePerKWh = defaultRate
		}
	}
	return New(seed.Stations)
}

// Get returns the station by id.
func (c *Catalog) Get(id string) (models.Station, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.stations[id]
	if !ok {
		return models.Station{}, fmt.Errorf("%w: station %q", models.ErrNotFound, id)
	}
	return st, nil
}

// List returns all stations in seed order.
func (c *Catalog) List() []models.Station {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Station, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.stations[id])
	}
	return out
}

// Available returns available stations ordered by crypto rate, cheapest first.
func (c *Catalog) Available() []models.Station {
	all := c.List()
	out := all[:0]
	for _, st := range all {
		if st.Available {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RateCryptoPerKWh < out[j].RateCryptoPerKWh
	})
	return out
}

func validate(st models.Station) error {
	switch {
	case strings.TrimSpace(st.ID) == "":
		return fmt.Errorf("%w: station id required", models.ErrValidation)
	case st.PowerKW <= 0:
		return fmt.Errorf("%w: station %q power_kw must be positive", models.ErrValidation, st.ID)
	case st.RatePerKWh <= 0:
		return fmt.Errorf("%w: station %q rate_per_kwh must be positive", models.ErrValidation, st.ID)
	case st.RateCryptoPerKWh <= 0:
		return fmt.Errorf("%w: station %q rate_crypto_per_kwh must be positive", models.ErrValidation, st.ID)
	}
	return nil
}
