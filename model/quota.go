package model

// QuotaLedger is the persisted (day_key, used) pair governing Secure Fix.
type QuotaLedger struct {
	DayKey    string // "YYYY-MM-DD"
	Used      int
	MaxPerDay int
}

// DefaultMaxPerDay is the default Secure Fix daily allowance (§3).
const DefaultMaxPerDay = 10
