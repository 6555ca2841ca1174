package enrich

import (
	"context"
	"fmt"

	"coinpulse/internal/domain"
)

type QuoteSource interface {
	GlobalQuote(ctx context.Context, symbol string) (float64, error)
	ExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// Macro proxies: an equity index fund, a gold fund and a dollar index derived
// from USD/EUR.
const (
	EquitySymbol    = "SPY"
	GoldSymbol      = "GLD"
	DollarBase      = "USD"
	DollarCounter   = "EUR"
	dollarIndexBase = 100.0
)

// MacroEnricher fills SP500, Gold and USD_Index. Each quote is fetched
// independently.
type MacroEnricher struct {
	source QuoteSource
}

func NewMacroEnricher(source QuoteSource) *MacroEnricher {
	return &MacroEnricher{source: source}
}

func (e *MacroEnricher) Name() string { return "macro" }

func (e *MacroEnricher) Enrich(ctx context.Context) domain.Patch {
	return domain.Patch{
		domain.FieldSP500:    e.quote(ctx, EquitySymbol, domain.FieldSP500),
		domain.FieldGold:     e.quote(ctx, GoldSymbol, domain.FieldGold),
		domain.FieldUSDIndex: e.dollarIndex(ctx),
	}
}

func (e *MacroEnricher) quote(ctx context.Context, symbol string, field domain.Field) *float64 {
	v, err := e.source.GlobalQuote(ctx, symbol)
	if err != nil {
		degrade(e.Name(), err, field)
		return nil
	}
	return domain.Float(v)
}

func (e *MacroEnricher) dollarIndex(ctx context.Context) *float64 {
	rate, err := e.source.ExchangeRate(ctx, DollarBase, DollarCounter)
	if err != nil {
		degrade(e.Name(), err, domain.FieldUSDIndex)
		return nil
	}
	if rate <= 0 {
		degrade(e.Name(), fmt.Errorf("non-positive %s/%s rate %v", DollarBase, DollarCounter, rate), domain.FieldUSDIndex)
		return nil
	}
	return domain.Float(dollarIndexBase / rate)
}
