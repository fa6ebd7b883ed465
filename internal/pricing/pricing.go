// Package pricing computes itemized ride fares.
package pricing

import (
	"fmt"
	"math"
	"time"

	"cabnet/internal/domain"
)

// Quote holds the inputs of a fare computation.
type Quote struct {
	RideType  domain.RideType
	DistanceM int
	Duration  time.Duration
	Surge     float64
}

// Strategy turns a quote into an itemized fare.
type Strategy interface {
	Compute(q Quote) (domain.Fare, error)
}

// RateCard is the tariff of one ride type.
type RateCard struct {
	Base      float64
	PerKm     float64
	PerMinute float64
	Minimum   float64
}

// DefaultRateCards returns the standard tariff per ride type.
func DefaultRateCards() map[domain.RideType]RateCard {
	return map[domain.RideType]RateCard{
		domain.RideTypeEconomy: {Base: 2.50, PerKm: 0.90, PerMinute: 0.20, Minimum: 5.00},
		domain.RideTypeComfort: {Base: 3.50, PerKm: 1.20, PerMinute: 0.30, Minimum: 7.00},
		domain.RideTypePremium: {Base: 5.00, PerKm: 1.80, PerMinute: 0.45, Minimum: 12.00},
		domain.RideTypeXL:      {Base: 4.50, PerKm: 1.50, PerMinute: 0.35, Minimum: 10.00},
	}
}

// MaxSurge caps the multiplier accepted by the strategy.
const MaxSurge = 3.0

// RateCardStrategy prices rides as base + distance + time, scaled by surge
// and floored at the card minimum.
type RateCardStrategy struct {
	cards    map[domain.RideType]RateCard
	currency string
}

// NewRateCardStrategy creates a RateCardStrategy. Nil cards use DefaultRateCards.
func NewRateCardStrategy(cards map[domain.RideType]RateCard, currency string) *RateCardStrategy {
	if cards == nil {
		cards = DefaultRateCards()
	}
	if currency == "" {
		currency = "usd"
	}
	return &RateCardStrategy{cards: cards, currency: currency}
}

// Compute implements Strategy.
func (s *RateCardStrategy) Compute(q Quote) (domain.Fare, error) {
	card, ok := s.cards[q.RideType]
	if !ok {
		return domain.Fare{}, fmt.Errorf("no rate card for ride type %q", q.RideType)
	}
	if q.DistanceM < 0 || q.Duration < 0 {
		return domain.Fare{}, fmt.Errorf("negative distance or duration")
	}

	surge := q.Surge
	if surge < 1 {
		surge = 1
	}
	if surge > MaxSurge {
		surge = MaxSurge
	}

	fare := domain.Fare{
		Base:     round(card.Base),
		Distance: round(float64(q.DistanceM) / 1000 * card.PerKm),
		Time:     round(q.Duration.Minutes() * card.PerMinute),
		Surge:    surge,
		Currency: s.currency,
	}
	fare.Total = round(math.Max((fare.Base+fare.Distance+fare.Time)*surge, card.Minimum))
	return fare, nil
}

// round rounds to cents.
func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a fare total to the smallest currency unit.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
