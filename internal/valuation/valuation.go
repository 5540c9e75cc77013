// Package valuation turns financial records and quoted prices into a net
// worth summary. The engine is pure: no I/O, no clock, and money stays
// decimal end to end. Callers convert to JSON-friendly numbers only when
// they serialize.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/quote"
)

// StockAccountRecords pairs a stock account with its holdings so the engine
// never has to reach back into storage.
type StockAccountRecords struct {
	Account  model.StockAccount
	Holdings []model.StockHolding
}

// PensionAccountRecords pairs a pension account with its deposit history.
type PensionAccountRecords struct {
	Account  model.PensionAccount
	Deposits []model.PensionDeposit
}

// HoldingValue is one holding priced against the quote map. A missing or
// errored quote leaves PriceKnown false and values the position at zero; the
// holding still appears here and in every count.
type HoldingValue struct {
	Holding     model.StockHolding
	Price       decimal.Decimal
	PriceKnown  bool
	MarketValue decimal.Decimal
	CostBasis   decimal.Decimal
	Gain        decimal.Decimal
	GainPercent *decimal.Decimal
}

// AccountValue aggregates the holdings of one stock account.
type AccountValue struct {
	Account     model.StockAccount
	Holdings    []HoldingValue
	MarketValue decimal.Decimal
	CostBasis   decimal.Decimal
	Gain        decimal.Decimal
	GainPercent *decimal.Decimal
}

// Portfolio aggregates all stock accounts. HoldingsCount includes positions
// whose price lookup failed.
type Portfolio struct {
	Accounts      []AccountValue
	MarketValue   decimal.Decimal
	CostBasis     decimal.Decimal
	Gain          decimal.Decimal
	GainPercent   *decimal.Decimal
	HoldingsCount int
}

// PensionAccountValue is one pension account with its deposit sum. The
// account's current value is self-reported, so deposits are informational
// rather than an input to the total.
type PensionAccountValue struct {
	Account       model.PensionAccount
	DepositsTotal decimal.Decimal
	DepositsCount int
}

// Pension aggregates all pension accounts.
type Pension struct {
	Accounts      []PensionAccountValue
	Total         decimal.Decimal
	DepositsTotal decimal.Decimal
}

// Assets partitions misc assets by sign. Liabilities are stored negative and
// reported here as absolute values; a zero value counts as an asset.
type Assets struct {
	Items            []model.MiscAsset
	AssetsTotal      decimal.Decimal
	LiabilitiesTotal decimal.Decimal
	NetValue         decimal.Decimal
}

// Summary is the full picture: NetWorth is exactly
// Portfolio.MarketValue + Pension.Total + Assets.NetValue.
type Summary struct {
	Portfolio Portfolio
	Pension   Pension
	Assets    Assets
	NetWorth  decimal.Decimal
}

// ComputeNetWorth values every record against the price map and sums the
// three groups. Quote failures degrade to a zero price for that symbol only;
// the function itself cannot fail.
func ComputeNetWorth(stocks []StockAccountRecords, pensions []PensionAccountRecords, assets []model.MiscAsset, prices map[string]quote.Result) Summary {
	var s Summary
	s.Portfolio = computePortfolio(stocks, prices)
	s.Pension = computePension(pensions)
	s.Assets = computeAssets(assets)
	s.NetWorth = s.Portfolio.MarketValue.Add(s.Pension.Total).Add(s.Assets.NetValue)
	return s
}

func computePortfolio(stocks []StockAccountRecords, prices map[string]quote.Result) Portfolio {
	p := Portfolio{Accounts: make([]AccountValue, 0, len(stocks))}
	for _, rec := range stocks {
		av := AccountValue{
			Account:  rec.Account,
			Holdings: make([]HoldingValue, 0, len(rec.Holdings)),
		}
		for _, h := range rec.Holdings {
			hv := valueHolding(h, prices)
			av.MarketValue = av.MarketValue.Add(hv.MarketValue)
			av.CostBasis = av.CostBasis.Add(hv.CostBasis)
			av.Holdings = append(av.Holdings, hv)
		}
		av.Gain = av.MarketValue.Sub(av.CostBasis)
		av.GainPercent = gainPercent(av.Gain, av.CostBasis)

		p.MarketValue = p.MarketValue.Add(av.MarketValue)
		p.CostBasis = p.CostBasis.Add(av.CostBasis)
		p.HoldingsCount += len(av.Holdings)
		p.Accounts = append(p.Accounts, av)
	}
	p.Gain = p.MarketValue.Sub(p.CostBasis)
	p.GainPercent = gainPercent(p.Gain, p.CostBasis)
	return p
}

func valueHolding(h model.StockHolding, prices map[string]quote.Result) HoldingValue {
	hv := HoldingValue{
		Holding:   h,
		CostBasis: h.Quantity.Mul(h.AvgCostBasis),
	}
	if r, ok := prices[h.Symbol]; ok && r.Err == nil {
		hv.Price = r.Quote.Price
		hv.PriceKnown = true
	}
	hv.MarketValue = h.Quantity.Mul(hv.Price)
	hv.Gain = hv.MarketValue.Sub(hv.CostBasis)
	hv.GainPercent = gainPercent(hv.Gain, hv.CostBasis)
	return hv
}

func computePension(pensions []PensionAccountRecords) Pension {
	p := Pension{Accounts: make([]PensionAccountValue, 0, len(pensions))}
	for _, rec := range pensions {
		av := PensionAccountValue{
			Account:       rec.Account,
			DepositsCount: len(rec.Deposits),
		}
		for _, d := range rec.Deposits {
			av.DepositsTotal = av.DepositsTotal.Add(d.Amount)
		}
		p.Total = p.Total.Add(rec.Account.CurrentValue)
		p.DepositsTotal = p.DepositsTotal.Add(av.DepositsTotal)
		p.Accounts = append(p.Accounts, av)
	}
	return p
}

func computeAssets(assets []model.MiscAsset) Assets {
	a := Assets{Items: assets}
	for _, item := range assets {
		if item.Value.IsNegative() {
			a.LiabilitiesTotal = a.LiabilitiesTotal.Add(item.Value.Abs())
		} else {
			a.AssetsTotal = a.AssetsTotal.Add(item.Value)
		}
	}
	a.NetValue = a.AssetsTotal.Sub(a.LiabilitiesTotal)
	return a
}

// gainPercent is gain over cost basis as a percentage. A zero cost basis has
// no meaningful percentage, so it yields nil rather than a division by zero.
func gainPercent(gain, costBasis decimal.Decimal) *decimal.Decimal {
	if costBasis.IsZero() {
		return nil
	}
	p := gain.Div(costBasis).Mul(decimal.NewFromInt(100))
	return &p
}
