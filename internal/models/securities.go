package models

import "time"

// EquityClassCode is the CFI code identifying ordinary shares in the ISIN
// registry. The security master is filtered to this instrument class.
const EquityClassCode = "ESVUFR"

// Security is one row of the security master, sourced from the exchange
// ISIN registry. The code is the store key; re-syncs upsert in place.
type Security struct {
	Code          string `badgerhold:"index"`
	Name          string
	MarketType    MarketType `badgerhold:"index"`
	SecurityClass string
	IssueDate     time.Time
	SyncedAt      time.Time
}
