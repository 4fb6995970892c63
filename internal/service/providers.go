package service

import (
	"context"
	"time"

	"github.com/yourorg/market-data-service/internal/client"
	"github.com/yourorg/market-data-service/internal/model"
)

// MarketDataProvider is the primary REST data surface consumed by the
// quote and candle services. *client.AlpacaClient satisfies it.
type MarketDataProvider interface {
	GetLatestTrade(ctx context.Context, symbol string) (*model.TradePoint, error)
	GetTrades(ctx context.Context, symbol string, start, end time.Time, limit int) ([]model.TradePoint, error)
	GetBars(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]model.Candle, error)
}

// AssetProvider serves symbol metadata. *client.AlpacaClient satisfies it.
type AssetProvider interface {
	GetAsset(ctx context.Context, symbol string) (*model.Asset, error)
	GetActiveAssets(ctx context.Context) ([]model.Asset, error)
}

// ChartProvider is the secondary candle surface. *client.YahooClient
// satisfies it.
type ChartProvider interface {
	GetChart(ctx context.Context, symbol, interval, chartRange string) (*client.ChartResult, error)
}

// StreamStatus exposes the live stream's health to the quote resolver.
// *stream.Manager satisfies it.
type StreamStatus interface {
	Live() bool
}

var (
	_ MarketDataProvider = (*client.AlpacaClient)(nil)
	_ AssetProvider      = (*client.AlpacaClient)(nil)
	_ ChartProvider      = (*client.YahooClient)(nil)
)
