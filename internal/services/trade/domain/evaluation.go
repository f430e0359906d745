package domain

import "time"

// Evaluation captures one post-trade rating a party left for the other.
type Evaluation struct {
	ID               string
	ProposalID       string
	EvaluatorUserID  string
	EvaluatedUserID  string
	GeneralRating    int
	Comment          string
	CreatedAt        time.Time
	DimensionRatings map[string]int
}

// Dimension is one read-only evaluation dimension with its aggregation weight.
type Dimension struct {
	ID     string
	Name   string
	Weight float64
}

// WeightedScore returns the evaluation's own weighted-dimension score:
// sum(rating x weight) / sum(weight) over the dimensions actually rated.
// An evaluation with no dimension ratings falls back to its general rating,
// so sparse evaluations cannot be dominated by dense ones when averaged.
func (e Evaluation) WeightedScore(weights map[string]float64) float64 {
	var weightedSum float64
	var weightTotal float64
	for dimensionID, rating := range e.DimensionRatings {
		weight, ok := weights[dimensionID]
		if !ok {
			continue
		}
		weightedSum += float64(rating) * weight
		weightTotal += weight
	}
	if weightTotal == 0 {
		return float64(e.GeneralRating)
	}
	return weightedSum / weightTotal
}
