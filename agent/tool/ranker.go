package tool

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/tanpawarit/table-reservation-agent/reservation"
)

type Scored struct {
	Restaurant reservation.Restaurant
	Score      float64
}

// Ranker orders candidate restaurants for a free-text query. Implementations
// may be semantic; KeywordRanker is the built-in fallback.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []reservation.Restaurant) ([]Scored, error)
}

// KeywordRanker scores the share of query terms found in a restaurant's
// text, plus a rating boost of rating/5*0.2.
type KeywordRanker struct{}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {}, "with": {}, "in": {},
	"at": {}, "to": {}, "of": {}, "place": {}, "restaurant": {}, "restaurants": {},
	"food": {}, "some": {}, "good": {}, "me": {}, "find": {}, "near": {}, "i": {}, "want": {},
}

func (KeywordRanker) Rank(_ context.Context, query string, candidates []reservation.Restaurant) ([]Scored, error) {
	terms := queryTerms(query)
	out := make([]Scored, 0, len(candidates))
	for _, r := range candidates {
		similarity := 0.0
		if len(terms) > 0 {
			hay := haystack(r)
			hits := 0
			for _, t := range terms {
				if strings.Contains(hay, t) {
					hits++
				}
			}
			similarity = float64(hits) / float64(len(terms))
		}
		out = append(out, Scored{Restaurant: r, Score: similarity + r.Rating/5*0.2})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Restaurant.ID < out[j].Restaurant.ID
	})
	return out, nil
}

func queryTerms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$'
	})
	out := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip || len(f) < 2 {
			continue
		}
		out = append(out, f)
	}
	return out
}

func haystack(r reservation.Restaurant) string {
	parts := append([]string{r.Name, r.Cuisine, r.Location, r.Description, r.PriceRange}, r.Features...)
	return strings.ToLower(strings.Join(parts, " "))
}
