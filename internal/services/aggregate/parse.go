package aggregate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketgrid/harvester/internal/models"
)

// Column layout shared by the monthly report tables: the closing price is
// the seventh cell of each data row.
const closeColumn = 6

// dailyClose is one parsed (trading day, closing price) observation.
type dailyClose struct {
	date  time.Time
	close decimal.Decimal
}

// parseCloses extracts valid daily closes from a raw payload. Rows with a
// non-date first cell (the main board appends a monthly-average summary
// row labelled rather than dated), a non-numeric close, or a non-positive
// close are discarded.
func parseCloses(market models.MarketType, raw string) ([]dailyClose, error) {
	var rows [][]string

	switch market {
	case models.MarketMain:
		var body struct {
			Stat string     `json:"stat"`
			Data [][]string `json:"data"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return nil, fmt.Errorf("malformed main board payload: %w", err)
		}
		rows = body.Data
	case models.MarketOTC, models.MarketEmerging:
		var body struct {
			TotalRecords int        `json:"iTotalRecords"`
			Rows         [][]string `json:"aaData"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return nil, fmt.Errorf("malformed OTC board payload: %w", err)
		}
		rows = body.Rows
	default:
		return nil, fmt.Errorf("unsupported market %q", market)
	}

	var closes []dailyClose
	for _, row := range rows {
		if len(row) <= closeColumn {
			continue
		}
		date, ok := parseQuoteDate(row[0])
		if !ok {
			continue
		}
		close, ok := parsePrice(row[closeColumn])
		if !ok {
			continue
		}
		closes = append(closes, dailyClose{date: date, close: close})
	}
	return closes, nil
}

// parseQuoteDate parses a report date cell. The upstream tables date rows
// in republic-era form ("113/05/02"); western years are accepted too since
// both appear across report vintages. Cells that do not split into a valid
// year/month/day, such as the labelled summary row, are rejected.
func parseQuoteDate(cell string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(cell), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}
	if year < 1000 {
		year += 1911
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		// Normalization moved the date, so the day was out of range for
		// the month.
		return time.Time{}, false
	}
	return d, true
}

// parsePrice parses a report price cell. Thousands separators are
// stripped; placeholder cells ("--") and non-positive values are rejected.
func parsePrice(cell string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cleaned == "" || cleaned == "--" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// monthlyStats computes the monthly aggregates over a set of closes.
// average is sum/count at 4 decimal places. highAvg averages the closes
// strictly above the average, falling back to the maximum close when that
// bucket is empty (every close equal to the average); lowAvg mirrors it on
// the minimum side.
func monthlyStats(closes []dailyClose) (average, highAvg, lowAvg decimal.Decimal) {
	count := decimal.NewFromInt(int64(len(closes)))
	sum := decimal.Zero
	for _, c := range closes {
		sum = sum.Add(c.close)
	}
	average = sum.Div(count).Round(4)

	highSum, lowSum := decimal.Zero, decimal.Zero
	var highN, lowN int64
	max, min := closes[0].close, closes[0].close

	for _, c := range closes {
		cmp := c.close.Cmp(average)
		if cmp > 0 {
			highSum = highSum.Add(c.close)
			highN++
		}
		if cmp < 0 {
			lowSum = lowSum.Add(c.close)
			lowN++
		}
		if c.close.GreaterThan(max) {
			max = c.close
		}
		if c.close.LessThan(min) {
			min = c.close
		}
	}

	if highSum.IsZero() {
		highAvg = max.Round(4)
	} else {
		highAvg = highSum.Div(decimal.NewFromInt(highN)).Round(4)
	}
	if lowSum.IsZero() {
		lowAvg = min.Round(4)
	} else {
		lowAvg = lowSum.Div(decimal.NewFromInt(lowN)).Round(4)
	}
	return average, highAvg, lowAvg
}
