package shop

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// TokenWeight is one word of a review and how strongly it pushed the
// predicted rating up (positive) or down (negative).
type TokenWeight struct {
	Token  string  `json:"word"`
	Weight float64 `json:"weight"`
}

// UnmarshalJSON accepts both the [token, weight] pair form and the
// {"word": ..., "weight": ...} object form.
func (tw *TokenWeight) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("token weight pair has %d elements", len(pair))
		}
		if err := json.Unmarshal(pair[0], &tw.Token); err != nil {
			return fmt.Errorf("token: %w", err)
		}
		if err := json.Unmarshal(pair[1], &tw.Weight); err != nil {
			return fmt.Errorf("weight: %w", err)
		}
		return nil
	}

	type plain TokenWeight
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*tw = TokenWeight(obj)
	return nil
}

// Explanation is the per-token breakdown of a predicted rating.
type Explanation []TokenWeight

// Sorted returns a copy ordered by decreasing influence (absolute weight).
// Ties keep their original order.
func (e Explanation) Sorted() Explanation {
	out := make(Explanation, len(e))
	copy(out, e)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Weight) > math.Abs(out[j].Weight)
	})
	return out
}

// Split separates tokens that raised the rating from those that lowered it,
// each in decreasing influence.
func (e Explanation) Split() (positive, negative Explanation) {
	for _, tw := range e.Sorted() {
		if tw.Weight >= 0 {
			positive = append(positive, tw)
		} else {
			negative = append(negative, tw)
		}
	}
	return positive, negative
}
