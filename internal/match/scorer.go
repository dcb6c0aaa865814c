// Package match pairs CAR statement transactions with receipt transactions
// using weighted multi-factor confidence scoring and greedy 1:1 assignment.
package match

import (
	"math"
	"strings"
	"time"

	"github.com/carrecon/carrecon/internal/model"
)

// Sub-score weights; they must sum to 1.0.
const (
	dateWeight     = 0.30
	amountWeight   = 0.30
	employeeWeight = 0.25
	merchantWeight = 0.15
)

// amountEpsilon absorbs floating point noise in amount comparisons.
const amountEpsilon = 1e-9

// Config holds matching tolerances and thresholds.
type Config struct {
	// DateToleranceDays is the maximum day difference still scoring above zero.
	DateToleranceDays int
	// AmountTolerance is the maximum absolute difference counted as equal.
	AmountTolerance float64
	// FuzzyThreshold is the minimum 0-100 fuzzy score for a merchant match.
	FuzzyThreshold int
	// MinConfidence is the default overall confidence floor for candidates.
	MinConfidence float64
}

// DefaultConfig returns the standard tolerances.
func DefaultConfig() Config {
	return Config{
		DateToleranceDays: 1,
		AmountTolerance:   0.01,
		FuzzyThreshold:    80,
		MinConfidence:     0.70,
	}
}

// Matcher scores and assigns CAR/receipt transaction pairs. It holds no
// state beyond its configuration; Score is a pure function.
type Matcher struct {
	config Config
}

// NewMatcher creates a matcher with the given config.
func NewMatcher(config Config) *Matcher {
	return &Matcher{config: config}
}

// Score computes the match candidate for one CAR transaction and one
// receipt transaction, including all four sub-scores.
func (m *Matcher) Score(car, receipt model.Transaction) model.MatchCandidate {
	dateScore := m.dateScore(car.Date, receipt.Date)
	amountScore := m.amountScore(car.Amount, receipt.Amount)
	employeeScore := m.employeeScore(car.EmployeeID, receipt.EmployeeID)
	merchantScore := m.merchantScore(car.Merchant, receipt.Merchant)

	confidence := dateScore*dateWeight +
		amountScore*amountWeight +
		employeeScore*employeeWeight +
		merchantScore*merchantWeight

	return model.MatchCandidate{
		CARTransactionID:     car.ID,
		ReceiptTransactionID: receipt.ID,
		Confidence:           confidence,
		DateScore:            dateScore,
		AmountScore:          amountScore,
		EmployeeScore:        employeeScore,
		MerchantScore:        merchantScore,
	}
}

// dateScore is 1.0 for the same calendar day, decays linearly to 0.5 at the
// tolerance, and is 0 beyond it or when either date is unknown.
func (m *Matcher) dateScore(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}

	dayDiff := dayDifference(*a, *b)
	switch {
	case dayDiff == 0:
		return 1.0
	case dayDiff <= m.config.DateToleranceDays:
		return 1.0 - (float64(dayDiff)/float64(m.config.DateToleranceDays))*0.5
	default:
		return 0
	}
}

// amountScore is binary: 1.0 when both amounts are known and agree within
// the tolerance, 0 otherwise.
func (m *Matcher) amountScore(a, b *float64) float64 {
	if a == nil || b == nil {
		return 0
	}
	if math.Abs(*a-*b) <= m.config.AmountTolerance+amountEpsilon {
		return 1.0
	}
	return 0
}

// employeeScore is binary: 1.0 when both IDs are known and equal after
// trimming and case folding, 0 otherwise.
func (m *Matcher) employeeScore(a, b *string) float64 {
	if a == nil || b == nil {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(*a), strings.TrimSpace(*b)) {
		return 1.0
	}
	return 0
}

// merchantScore takes the best of three fuzzy similarity measures on the
// normalized names. Below the fuzzy threshold the score is 0; at or above
// it, the score is the best measure divided by 100.
func (m *Matcher) merchantScore(a, b *string) float64 {
	if a == nil || b == nil {
		return 0
	}

	carName := strings.ToUpper(strings.TrimSpace(*a))
	receiptName := strings.ToUpper(strings.TrimSpace(*b))

	best := ratio(carName, receiptName)
	if partial := partialRatio(carName, receiptName); partial > best {
		best = partial
	}
	if tokenSort := tokenSortRatio(carName, receiptName); tokenSort > best {
		best = tokenSort
	}

	if best < m.config.FuzzyThreshold {
		return 0
	}
	return float64(best) / 100.0
}

// dayDifference counts whole calendar days between two dates, ignoring any
// time-of-day component.
func dayDifference(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := int(ad.Sub(bd).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
