package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/stockwallet/backend/internal/domain"
)

// AlpacaProvider serves on-demand latest trades and daily history from
// the Alpaca market-data API. Credentials come from the standard
// APCA_API_* environment variables.
type AlpacaProvider struct {
	client *marketdata.Client
}

var (
	_ LatestProvider         = (*AlpacaProvider)(nil)
	_ domain.HistoryProvider = (*AlpacaProvider)(nil)
)

func NewAlpacaProvider() *AlpacaProvider {
	return &AlpacaProvider{client: marketdata.NewClient(marketdata.ClientOpts{})}
}

func (p *AlpacaProvider) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	trade, err := p.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, err
	}
	if trade == nil {
		return decimal.Zero, fmt.Errorf("no trade found for %s", symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

func (p *AlpacaProvider) DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]domain.AssetDay, error) {
	if from.IsZero() {
		from = to.AddDate(-5, 0, 0)
	}

	bars, err := p.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to,
	})
	if err != nil {
		return nil, err
	}

	days := make([]domain.AssetDay, 0, len(bars))
	for _, bar := range bars {
		days = append(days, domain.AssetDay{
			Symbol: symbol,
			Time:   bar.Timestamp,
			Open:   decimal.NewFromFloat(bar.Open),
			High:   decimal.NewFromFloat(bar.High),
			Low:    decimal.NewFromFloat(bar.Low),
			Close:  decimal.NewFromFloat(bar.Close),
			Volume: int64(bar.Volume),
		})
	}
	return days, nil
}
