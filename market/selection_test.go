package market

import (
	"testing"

	"github.com/shopspring/decimal"

	"optionflow/models"
)

func contractAt(strike int64, optType models.OptionType) *models.OptionContract {
	suffix := "C"
	if optType == models.OptionTypePut {
		suffix = "P"
	}
	return &models.OptionContract{
		Symbol: "BTC-250905-" + decimal.NewFromInt(strike).String() + "-" + suffix,
		Strike: decimal.NewFromInt(strike),
		Type:   optType,
	}
}

func TestFindATM(t *testing.T) {
	chain := []*models.OptionContract{
		contractAt(90, models.OptionTypeCall),
		contractAt(95, models.OptionTypeCall),
		contractAt(100, models.OptionTypeCall),
		contractAt(105, models.OptionTypeCall),
	}

	atm := FindATM(chain, decimal.NewFromInt(97), models.OptionTypeCall)
	if atm == nil {
		t.Fatal("expected a contract")
	}
	if !atm.Strike.Equal(decimal.NewFromInt(95)) {
		t.Errorf("atm strike = %s, want 95", atm.Strike)
	}
}

func TestFindATMTieBreaksToFirst(t *testing.T) {
	chain := []*models.OptionContract{
		contractAt(96, models.OptionTypeCall),
		contractAt(98, models.OptionTypeCall),
	}

	// Both strikes are distance 1 from the reference; chain order decides.
	atm := FindATM(chain, decimal.NewFromInt(97), models.OptionTypeCall)
	if !atm.Strike.Equal(decimal.NewFromInt(96)) {
		t.Errorf("atm strike = %s, want first-encountered 96", atm.Strike)
	}
}

func TestFindATMNoContractOfType(t *testing.T) {
	chain := []*models.OptionContract{contractAt(100, models.OptionTypeCall)}
	if got := FindATM(chain, decimal.NewFromInt(97), models.OptionTypePut); got != nil {
		t.Errorf("expected nil, got %s", got.Symbol)
	}
	if got := FindATM(nil, decimal.NewFromInt(97), models.OptionTypeCall); got != nil {
		t.Errorf("expected nil for empty chain, got %s", got.Symbol)
	}
}

func TestFindAtDistanceInclusiveBoundary(t *testing.T) {
	chain := []*models.OptionContract{
		contractAt(100, models.OptionTypeCall),
		contractAt(102, models.OptionTypeCall),
		contractAt(104, models.OptionTypeCall),
		contractAt(106, models.OptionTypeCall),
	}

	// Threshold is 2*1000; none of these strikes is 2000 away from 100.
	if got := FindAtDistance(chain, decimal.NewFromInt(100), 2, models.OptionTypeCall); len(got) != 0 {
		t.Errorf("got %d contracts, want 0 below the scaled threshold", len(got))
	}

	wide := []*models.OptionContract{
		contractAt(60000, models.OptionTypeCall),
		contractAt(61000, models.OptionTypeCall),
		contractAt(62000, models.OptionTypeCall),
		contractAt(64000, models.OptionTypeCall),
	}
	got := FindAtDistance(wide, decimal.NewFromInt(60000), 2, models.OptionTypeCall)
	if len(got) != 2 {
		t.Fatalf("got %d contracts, want 2", len(got))
	}
	// Strike exactly distance*1000 away is included, and results are
	// sorted ascending by distance.
	if !got[0].Strike.Equal(decimal.NewFromInt(62000)) {
		t.Errorf("first = %s, want 62000 (inclusive boundary)", got[0].Strike)
	}
	if !got[1].Strike.Equal(decimal.NewFromInt(64000)) {
		t.Errorf("last = %s, want 64000", got[1].Strike)
	}
}

func TestFindAtDistanceBothSides(t *testing.T) {
	chain := []*models.OptionContract{
		contractAt(57000, models.OptionTypePut),
		contractAt(60000, models.OptionTypePut),
		contractAt(63000, models.OptionTypePut),
	}
	got := FindAtDistance(chain, decimal.NewFromInt(60000), 3, models.OptionTypePut)
	if len(got) != 2 {
		t.Fatalf("got %d contracts, want strikes on both sides", len(got))
	}
}

func TestAssembleButterfly(t *testing.T) {
	chain := []*models.OptionContract{
		contractAt(58000, models.OptionTypeCall),
		contractAt(60000, models.OptionTypeCall),
		contractAt(62000, models.OptionTypeCall),
		contractAt(64000, models.OptionTypeCall),
		contractAt(56000, models.OptionTypePut),
		contractAt(58000, models.OptionTypePut),
		contractAt(60000, models.OptionTypePut),
	}

	b := AssembleButterfly(chain, decimal.NewFromInt(60100), 2)
	if b == nil {
		t.Fatal("expected a complete butterfly")
	}
	if !b.ATMCall.Strike.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("atm call = %s, want 60000", b.ATMCall.Strike)
	}
	if !b.ATMPut.Strike.Equal(decimal.NewFromInt(60000)) {
		t.Errorf("atm put = %s, want 60000", b.ATMPut.Strike)
	}
	// The wing is the furthest qualifying contract, not the nearest.
	if !b.WingCall.Strike.Equal(decimal.NewFromInt(64000)) {
		t.Errorf("wing call = %s, want 64000", b.WingCall.Strike)
	}
	if !b.WingPut.Strike.Equal(decimal.NewFromInt(56000)) {
		t.Errorf("wing put = %s, want 56000", b.WingPut.Strike)
	}
}

func TestAssembleButterflyIncomplete(t *testing.T) {
	noWings := []*models.OptionContract{
		contractAt(60000, models.OptionTypeCall),
		contractAt(60000, models.OptionTypePut),
	}
	if b := AssembleButterfly(noWings, decimal.NewFromInt(60000), 2); b != nil {
		t.Error("no qualifying wing must mean no trade")
	}

	noPuts := []*models.OptionContract{
		contractAt(60000, models.OptionTypeCall),
		contractAt(64000, models.OptionTypeCall),
	}
	if b := AssembleButterfly(noPuts, decimal.NewFromInt(60000), 2); b != nil {
		t.Error("missing ATM put must mean no trade")
	}

	if b := AssembleButterfly(nil, decimal.NewFromInt(60000), 2); b != nil {
		t.Error("empty chain must mean no trade")
	}
}
