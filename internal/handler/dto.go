package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/mathom/internal/authz"
	"github.com/dukerupert/mathom/internal/model"
	"github.com/dukerupert/mathom/internal/valuation"
)

// Response DTOs. The wire format is camelCase with money as plain JSON
// numbers; decimals stay exact internally and are converted only here, on
// the way out. Request structs accept decimal fields directly so amounts
// parse without a float round-trip.

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// percent rounds to two decimal places. A nil input (undefined percentage,
// zero cost basis) stays nil and serializes as JSON null.
func percent(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.Round(2).InexactFloat64()
	return &f
}

type profileDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AvatarEmoji string    `json:"avatarEmoji"`
	Color       string    `json:"color"`
	HasUser     bool      `json:"hasUser"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toProfileDTO(p model.Profile) profileDTO {
	return profileDTO{
		ID:          p.ID,
		Name:        p.Name,
		AvatarEmoji: p.AvatarEmoji,
		Color:       p.Color,
		HasUser:     p.HasUser(),
		CreatedAt:   p.CreatedAt,
	}
}

func toProfileDTOs(ps []model.Profile) []profileDTO {
	out := make([]profileDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProfileDTO(p))
	}
	return out
}

type householdDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toHouseholdDTO(h model.Household) householdDTO {
	return householdDTO{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		CreatedAt:   h.CreatedAt,
	}
}

// membershipDTO is one entry in the caller's household list: the household
// plus the role the caller holds in it.
type membershipDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
}

func toMembershipDTOs(ms []model.Membership) []membershipDTO {
	out := make([]membershipDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, membershipDTO{
			ID:          m.Household.ID,
			Name:        m.Household.Name,
			Description: m.Household.Description,
			Role:        m.Role,
		})
	}
	return out
}

type contextDTO struct {
	Profile           profileDTO      `json:"profile"`
	Households        []membershipDTO `json:"households"`
	ActiveHousehold   householdDTO    `json:"activeHousehold"`
	Role              string          `json:"role"`
	HouseholdProfiles []profileDTO    `json:"householdProfiles"`
}

func toContextDTO(c *authz.Context) contextDTO {
	return contextDTO{
		Profile:           toProfileDTO(c.Profile),
		Households:        toMembershipDTOs(c.Memberships),
		ActiveHousehold:   toHouseholdDTO(c.ActiveHousehold),
		Role:              c.Role,
		HouseholdProfiles: toProfileDTOs(c.HouseholdProfiles),
	}
}

type memberDTO struct {
	Profile profileDTO `json:"profile"`
	Role    string     `json:"role"`
}

type stockHoldingDTO struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Quantity     float64   `json:"quantity"`
	AvgCostBasis float64   `json:"avgCostBasis"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toStockHoldingDTO(h model.StockHolding) stockHoldingDTO {
	return stockHoldingDTO{
		ID:           h.ID,
		AccountID:    h.AccountID,
		Symbol:       h.Symbol,
		Name:         h.Name,
		Quantity:     money(h.Quantity),
		AvgCostBasis: money(h.AvgCostBasis),
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.UpdatedAt,
	}
}

func toStockHoldingDTOs(hs []model.StockHolding) []stockHoldingDTO {
	out := make([]stockHoldingDTO, 0, len(hs))
	for _, h := range hs {
		out = append(out, toStockHoldingDTO(h))
	}
	return out
}

type stockAccountDTO struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Broker    string            `json:"broker"`
	Owners    []profileDTO      `json:"owners"`
	Holdings  []stockHoldingDTO `json:"holdings"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type pensionDepositDTO struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Amount      float64   `json:"amount"`
	DepositedOn string    `json:"depositedOn"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toPensionDepositDTO(d model.PensionDeposit) pensionDepositDTO {
	return pensionDepositDTO{
		ID:          d.ID,
		AccountID:   d.AccountID,
		Amount:      money(d.Amount),
		DepositedOn: d.DepositedOn.Format("2006-01-02"),
		Note:        d.Note,
		CreatedAt:   d.CreatedAt,
	}
}

func toPensionDepositDTOs(ds []model.PensionDeposit) []pensionDepositDTO {
	out := make([]pensionDepositDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, toPensionDepositDTO(d))
	}
	return out
}

type pensionAccountDTO struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Provider     string              `json:"provider"`
	CurrentValue float64             `json:"currentValue"`
	Owners       []profileDTO        `json:"owners"`
	Deposits     []pensionDepositDTO `json:"deposits"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type assetDTO struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	Value     float64      `json:"value"`
	Owners    []profileDTO `json:"owners"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func toAssetDTO(a model.MiscAsset, owners []model.Profile) assetDTO {
	return assetDTO{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Type:      string(a.Type),
		Value:     money(a.Value),
		Owners:    toProfileDTOs(owners),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type snapshotDTO struct {
	ID       string    `json:"id"`
	NetWorth float64   `json:"netWorth"`
	TakenAt  time.Time `json:"takenAt"`
}

func toSnapshotDTOs(ss []model.NetWorthSnapshot) []snapshotDTO {
	out := make([]snapshotDTO, 0, len(ss))
	for _, s := range ss {
		out = append(out, snapshotDTO{
			ID:       s.ID,
			NetWorth: money(s.NetWorth),
			TakenAt:  s.TakenAt,
		})
	}
	return out
}

// Dashboard DTOs mirror the valuation summary tree.

type dashboardDTO struct {
	NetWorth  float64           `json:"netWorth"`
	Portfolio portfolioDTO      `json:"portfolio"`
	Pension   pensionSummaryDTO `json:"pension"`
	Assets    assetsSummaryDTO  `json:"assets"`
}

type portfolioDTO struct {
	MarketValue   float64               `json:"marketValue"`
	CostBasis     float64               `json:"costBasis"`
	Gain          float64               `json:"gain"`
	GainPercent   *float64              `json:"gainPercent"`
	HoldingsCount int                   `json:"holdingsCount"`
	Accounts      []portfolioAccountDTO `json:"accounts"`
}

type portfolioAccountDTO struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Broker      string                `json:"broker"`
	MarketValue float64               `json:"marketValue"`
	CostBasis   float64               `json:"costBasis"`
	Gain        float64               `json:"gain"`
	GainPercent *float64              `json:"gainPercent"`
	Holdings    []portfolioHoldingDTO `json:"holdings"`
}

type portfolioHoldingDTO struct {
	ID          string   `json:"id"`
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Quantity    float64  `json:"quantity"`
	Price       float64  `json:"price"`
	PriceKnown  bool     `json:"priceKnown"`
	MarketValue float64  `json:"marketValue"`
	CostBasis   float64  `json:"costBasis"`
	Gain        float64  `json:"gain"`
	GainPercent *float64 `json:"gainPercent"`
}

type pensionSummaryDTO struct {
	Total         float64                    `json:"total"`
	DepositsTotal float64                    `json:"depositsTotal"`
	Accounts      []pensionSummaryAccountDTO `json:"accounts"`
}

type pensionSummaryAccountDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	CurrentValue  float64 `json:"currentValue"`
	DepositsTotal float64 `json:"depositsTotal"`
	DepositsCount int     `json:"depositsCount"`
}

type assetsSummaryDTO struct {
	AssetsTotal      float64         `json:"assetsTotal"`
	LiabilitiesTotal float64         `json:"liabilitiesTotal"`
	NetValue         float64         `json:"netValue"`
	Items            []assetValueDTO `json:"items"`
}

type assetValueDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

func toDashboardDTO(s valuation.Summary) dashboardDTO {
	accounts := make([]portfolioAccountDTO, 0, len(s.Portfolio.Accounts))
	for _, av := range s.Portfolio.Accounts {
		holdings := make([]portfolioHoldingDTO, 0, len(av.Holdings))
		for _, hv := range av.Holdings {
			holdings = append(holdings, portfolioHoldingDTO{
				ID:          hv.Holding.ID,
				Symbol:      hv.Holding.Symbol,
				Name:        hv.Holding.Name,
				Quantity:    money(hv.Holding.Quantity),
				Price:       money(hv.Price),
				PriceKnown:  hv.PriceKnown,
				MarketValue: money(hv.MarketValue),
				CostBasis:   money(hv.CostBasis),
				Gain:        money(hv.Gain),
				GainPercent: percent(hv.GainPercent),
			})
		}
		accounts = append(accounts, portfolioAccountDTO{
			ID:          av.Account.ID,
			Name:        av.Account.Name,
			Broker:      av.Account.Broker,
			MarketValue: money(av.MarketValue),
			CostBasis:   money(av.CostBasis),
			Gain:        money(av.Gain),
			GainPercent: percent(av.GainPercent),
			Holdings:    holdings,
		})
	}

	pensions := make([]pensionSummaryAccountDTO, 0, len(s.Pension.Accounts))
	for _, pv := range s.Pension.Accounts {
		pensions = append(pensions, pensionSummaryAccountDTO{
			ID:            pv.Account.ID,
			Name:          pv.Account.Name,
			Provider:      pv.Account.Provider,
			CurrentValue:  money(pv.Account.CurrentValue),
			DepositsTotal: money(pv.DepositsTotal),
			DepositsCount: pv.DepositsCount,
		})
	}

	items := make([]assetValueDTO, 0, len(s.Assets.Items))
	for _, a := range s.Assets.Items {
		items = append(items, assetValueDTO{
			ID:    a.ID,
			Name:  a.Name,
			Type:  string(a.Type),
			Value: money(a.Value),
		})
	}

	return dashboardDTO{
		NetWorth: money(s.NetWorth),
		Portfolio: portfolioDTO{
			MarketValue:   money(s.Portfolio.MarketValue),
			CostBasis:     money(s.Portfolio.CostBasis),
			Gain:          money(s.Portfolio.Gain),
			GainPercent:   percent(s.Portfolio.GainPercent),
			HoldingsCount: s.Portfolio.HoldingsCount,
			Accounts:      accounts,
		},
		Pension: pensionSummaryDTO{
			Total:         money(s.Pension.Total),
			DepositsTotal: money(s.Pension.DepositsTotal),
			Accounts:      pensions,
		},
		Assets: assetsSummaryDTO{
			AssetsTotal:      money(s.Assets.AssetsTotal),
			LiabilitiesTotal: money(s.Assets.LiabilitiesTotal),
			NetValue:         money(s.Assets.NetValue),
			Items:            items,
		},
	}
}
