package domain

// OutcomeStatus says whether a SKU received an automated recommendation.
type OutcomeStatus int

const (
	OutcomeRecommended OutcomeStatus = iota
	OutcomeExcluded
)

var outcomeStatusLabels = map[OutcomeStatus]string{
	OutcomeRecommended: "recommended",
	OutcomeExcluded:    "excluded",
}

// String returns the label stored in exports and the database.
func (s OutcomeStatus) String() string {
	if label, ok := outcomeStatusLabels[s]; ok {
		return label
	}

	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s OutcomeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
