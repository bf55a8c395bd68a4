// Package market is the market-data service layer: chain acquisition,
// pricing refresh and strike selection for the iron butterfly structure.
package market

import (
	"sort"

	"github.com/shopspring/decimal"

	"optionflow/models"
)

// strikeQuantum converts the configured strike distance (logical steps)
// into price units. Strikes are assumed quoted on a 1000-unit grid; an
// instrument with a different quantum makes this threshold wrong.
// TODO: derive the quantum from the instrument listing filters instead.
const strikeQuantum = 1000

// FindATM returns the contract of the given type whose strike is closest
// to the reference price. Ties resolve to the first contract in chain
// order. Returns nil when the chain has no contract of that type.
func FindATM(chain []*models.OptionContract, reference decimal.Decimal, optType models.OptionType) *models.OptionContract {
	var best *models.OptionContract
	var bestDistance decimal.Decimal

	for _, contract := range chain {
		if contract.Type != optType {
			continue
		}
		distance := contract.Strike.Sub(reference).Abs()
		if best == nil || distance.LessThan(bestDistance) {
			best = contract
			bestDistance = distance
		}
	}
	return best
}

// FindAtDistance returns the contracts of the given type whose strike is
// at least strikeDistance*strikeQuantum away from the ATM strike, sorted
// ascending by that distance. The boundary is inclusive. An empty result
// means no wing exists within the configured bound.
func FindAtDistance(chain []*models.OptionContract, atmStrike decimal.Decimal, strikeDistance int, optType models.OptionType) []*models.OptionContract {
	threshold := decimal.NewFromInt(int64(strikeDistance) * strikeQuantum)

	matched := make([]*models.OptionContract, 0, len(chain))
	for _, contract := range chain {
		if contract.Type != optType {
			continue
		}
		if contract.Strike.Sub(atmStrike).Abs().GreaterThanOrEqual(threshold) {
			matched = append(matched, contract)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		di := matched[i].Strike.Sub(atmStrike).Abs()
		dj := matched[j].Strike.Sub(atmStrike).Abs()
		return di.LessThan(dj)
	})
	return matched
}

// Butterfly is the four-leg iron butterfly structure: short straddle at
// the money plus protective wings.
type Butterfly struct {
	ATMCall  *models.OptionContract
	ATMPut   *models.OptionContract
	WingCall *models.OptionContract
	WingPut  *models.OptionContract
}

// AssembleButterfly selects the four legs from a normalized chain. The
// wing is the furthest qualifying contract, the last element of the
// distance-sorted list. Returns nil when any leg is missing: an
// incomplete structure means no trade, never a substituted nearer
// strike.
func AssembleButterfly(chain []*models.OptionContract, reference decimal.Decimal, strikeDistance int) *Butterfly {
	atmCall := FindATM(chain, reference, models.OptionTypeCall)
	atmPut := FindATM(chain, reference, models.OptionTypePut)
	if atmCall == nil || atmPut == nil {
		return nil
	}

	callWings := FindAtDistance(chain, atmCall.Strike, strikeDistance, models.OptionTypeCall)
	putWings := FindAtDistance(chain, atmPut.Strike, strikeDistance, models.OptionTypePut)
	if len(callWings) == 0 || len(putWings) == 0 {
		return nil
	}

	return &Butterfly{
		ATMCall:  atmCall,
		ATMPut:   atmPut,
		WingCall: callWings[len(callWings)-1],
		WingPut:  putWings[len(putWings)-1],
	}
}
