package stubbackend

import (
	"math"
	"strings"
	"unicode"

	"github.com/onnwee/shopfinder/internal/shop"
)

// MaxExplanationTokens caps the tokens returned per explanation.
const MaxExplanationTokens = 10

// lexicon holds the per-token contribution to a predicted rating.
var lexicon = map[string]float64{
	"excellent":     0.46,
	"great":         0.41,
	"delicious":     0.38,
	"lovely":        0.33,
	"friendly":      0.31,
	"fresh":         0.29,
	"knowledgeable": 0.27,
	"helpful":       0.26,
	"clean":         0.21,
	"quality":       0.18,
	"worth":         0.17,
	"convenient":    0.12,
	"cheap":         0.08,
	"fine":          0.04,
	"slow":          -0.19,
	"long":          -0.11,
	"crowded":       -0.17,
	"pricey":        -0.18,
	"expensive":     -0.22,
	"date":          -0.24,
	"dirty":         -0.36,
	"rude":          -0.44,
}

// Explain scores the words of text against the lexicon. Repeated words
// weigh more, with diminishing returns. The strongest MaxExplanationTokens
// tokens are returned, strongest first.
func Explain(text string) shop.Explanation {
	counts := make(map[string]int)
	var order []string
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := lexicon[word]; !ok {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	out := make(shop.Explanation, 0, len(order))
	for _, word := range order {
		w := lexicon[word] * (1 + math.Log(float64(counts[word])))
		out = append(out, shop.TokenWeight{Token: word, Weight: math.Round(w*1000) / 1000})
	}
	out = out.Sorted()
	if len(out) > MaxExplanationTokens {
		out = out[:MaxExplanationTokens]
	}
	return out
}

// combinedReviews joins the review texts of s the way the ranking model
// reads them.
func combinedReviews(s shop.Shop) string {
	texts := make([]string, len(s.Reviews))
	for i, r := range s.Reviews {
		texts[i] = r.Text
	}
	return strings.Join(texts, " ")
}

// describe renders the strongest tokens of e as a one-line explanation,
// for example "Raised by: excellent, friendly. Lowered by: expensive."
func describe(e shop.Explanation) string {
	const perSide = 3
	positive, negative := e.Split()
	var parts []string
	if len(positive) > 0 {
		parts = append(parts, "Raised by: "+joinTokens(positive, perSide)+".")
	}
	if len(negative) > 0 {
		parts = append(parts, "Lowered by: "+joinTokens(negative, perSide)+".")
	}
	return strings.Join(parts, " ")
}

func joinTokens(e shop.Explanation, limit int) string {
	if len(e) > limit {
		e = e[:limit]
	}
	tokens := make([]string, len(e))
	for i, tw := range e {
		tokens[i] = tw.Token
	}
	return strings.Join(tokens, ", ")
}
