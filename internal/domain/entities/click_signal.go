package entities

import "time"

// ClickSignal holds the aggregated click telemetry for one entity over a
// trailing time window. It is derived on demand from the search history
// log, never stored on its own.
type ClickSignal struct {
	EntityType       string    `json:"entity_type"`
	EntityID         string    `json:"entity_id"`
	TotalClicks      int       `json:"total_clicks"`
	UniqueSearches   int       `json:"unique_searches"`
	AvgClickPosition float64   `json:"avg_click_position"`
	LastClicked      time.Time `json:"last_clicked"`
}

// CTR is the click-through rate: clicks over approximated impressions.
// Zero impressions yield 0, never a division error.
func (s *ClickSignal) CTR() float64 {
	if s.UniqueSearches == 0 {
		return 0
	}
	return float64(s.TotalClicks) / float64(s.UniqueSearches)
}
