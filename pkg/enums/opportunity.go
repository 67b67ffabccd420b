package enums

// OpportunityStatus maps to the opportunity status column.
type OpportunityStatus string

const (
	OpportunityStatusOpen OpportunityStatus = "open"
	OpportunityStatusWon  OpportunityStatus = "won"
	OpportunityStatusLost OpportunityStatus = "lost"
)

// IsValid reports whether the value is a known opportunity status.
func (s OpportunityStatus) IsValid() bool {
	switch s {
	case OpportunityStatusOpen, OpportunityStatusWon, OpportunityStatusLost:
		return true
	}
	return false
}
