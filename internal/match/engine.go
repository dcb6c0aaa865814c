package match

import (
	"sort"

	"github.com/carrecon/carrecon/internal/model"
)

// FindMatches scores every CAR transaction against every receipt
// transaction and returns the candidates at or above minConfidence, sorted
// by confidence descending. The sort is stable, so equal-confidence
// candidates keep the cross-product order and results are deterministic for
// identical input order. A minConfidence of zero or less falls back to the
// configured default.
func (m *Matcher) FindMatches(carTxns, receiptTxns []model.Transaction, minConfidence float64) []model.MatchCandidate {
	if minConfidence <= 0 {
		minConfidence = m.config.MinConfidence
	}

	var candidates []model.MatchCandidate
	for _, car := range carTxns {
		for _, receipt := range receiptTxns {
			candidate := m.Score(car, receipt)
			if candidate.Confidence >= minConfidence {
				candidates = append(candidates, candidate)
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	return candidates
}

// FindBestMatches returns a greedy 1:1 assignment: candidates are accepted
// in confidence order, skipping any whose CAR or receipt transaction was
// already consumed by an earlier acceptance. No transaction ID appears in
// more than one returned candidate. This is a greedy approximation of
// maximum-weight bipartite matching, not an optimal assignment.
//
// The consumed sets are scoped to this call; the matcher carries no state
// between runs. Empty input pools yield an empty result.
func (m *Matcher) FindBestMatches(carTxns, receiptTxns []model.Transaction, minConfidence float64) []model.MatchCandidate {
	candidates := m.FindMatches(carTxns, receiptTxns, minConfidence)

	usedCAR := make(map[string]bool, len(carTxns))
	usedReceipt := make(map[string]bool, len(receiptTxns))
	var best []model.MatchCandidate

	for _, candidate := range candidates {
		if usedCAR[candidate.CARTransactionID] || usedReceipt[candidate.ReceiptTransactionID] {
			continue
		}

		best = append(best, candidate)
		usedCAR[candidate.CARTransactionID] = true
		usedReceipt[candidate.ReceiptTransactionID] = true
	}

	return best
}
