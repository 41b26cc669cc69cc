package rag

import (
	"context"
	"sort"
)

// RRFReranker implements Reciprocal Rank Fusion for result reranking
type RRFReranker struct {
	k float64 // Constant to prevent division by zero and control ranking influence
}

// NewRRFReranker creates a new RRF reranker with the given k parameter
func NewRRFReranker(k float64) *RRFReranker {
	if k <= 0 {
		k = 60 // Default value from RRF paper
	}
	return &RRFReranker{k: k}
}

// Rerank fuses dense and sparse rankings. Results are matched by chunk ID;
// the returned Score is the fused RRF score.
func (r *RRFReranker) Rerank(
	ctx context.Context,
	denseResults, sparseResults []SearchResult,
	denseWeight, sparseWeight float64,
) []SearchResult {
	totalWeight := denseWeight + sparseWeight
	if totalWeight > 0 {
		denseWeight /= totalWeight
		sparseWeight /= totalWeight
	} else {
		denseWeight = 0.5
		sparseWeight = 0.5
	}

	scores := make(map[string]float64)
	docMap := make(map[string]SearchResult)
	var order []string

	add := func(results []SearchResult, weight float64) {
		for rank, result := range results {
			rrf := 1.0 / (float64(rank+1) + r.k)
			if _, seen := docMap[result.ID]; !seen {
				docMap[result.ID] = result
				order = append(order, result.ID)
			}
			scores[result.ID] += rrf * weight
		}
	}
	add(denseResults, denseWeight)
	add(sparseResults, sparseWeight)

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		result := docMap[id]
		result.Score = scores[id]
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
