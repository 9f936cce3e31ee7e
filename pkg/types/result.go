package types

// SearchResult represents a single ranked hit
type SearchResult struct {
	Score       float64 `json:"score"` // 0 when the store returned no score
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// ScoreOrZero dereferences an optional store score
func ScoreOrZero(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}
