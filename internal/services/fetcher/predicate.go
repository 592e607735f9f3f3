package fetcher

import (
	"encoding/json"

	"github.com/marketgrid/harvester/internal/models"
)

// PayloadAccepted evaluates the payload-embedded success signal for a
// market. Transport-level success never implies data success: the main
// board reports a status field, the OTC-adjacent boards a record count.
func PayloadAccepted(market models.MarketType, raw string) bool {
	switch market {
	case models.MarketMain:
		var body struct {
			Stat string `json:"stat"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return false
		}
		return body.Stat == "OK"
	case models.MarketOTC, models.MarketEmerging:
		var body struct {
			TotalRecords int `json:"iTotalRecords"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return false
		}
		return body.TotalRecords > 0
	default:
		return false
	}
}
