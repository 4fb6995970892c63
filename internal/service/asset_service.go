package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"
)

const assetsCacheKey = "active-assets"

// Display names for the high-liquidity watch-list symbols, used when the
// metadata lookup fails or returns no name.
var fallbackNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"MSFT":  "Microsoft Corporation",
	"GOOGL": "Alphabet Inc.",
	"AMZN":  "Amazon.com, Inc.",
	"META":  "Meta Platforms, Inc.",
	"TSLA":  "Tesla, Inc.",
	"NVDA":  "NVIDIA Corporation",
	"NFLX":  "Netflix, Inc.",
}

// AssetService resolves symbol metadata: display names for quotes and the
// searchable asset universe. Both caches are plain instances owned by the
// composition root, nothing package-global.
type AssetService struct {
	provider    AssetProvider
	nameCache   *cache.NameCache
	assetsCache *cache.TTLCache
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewAssetService creates a new asset service.
func NewAssetService(
	provider AssetProvider,
	nameCache *cache.NameCache,
	assetsCache *cache.TTLCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AssetService {
	return &AssetService{
		provider:    provider,
		nameCache:   nameCache,
		assetsCache: assetsCache,
		metrics:     m,
		logger:      logger,
	}
}

// GetName returns a best-effort display name for a symbol. Lookup order is
// the process-lifetime name cache, provider metadata, the static fallback
// table, and finally the symbol itself. It never fails.
func (s *AssetService) GetName(ctx context.Context, symbol string) string {
	symbol = strings.ToUpper(symbol)

	if name, ok := s.nameCache.Get(symbol); ok {
		s.metrics.CacheLookups.WithLabelValues("names", "hit").Inc()
		return name
	}
	s.metrics.CacheLookups.WithLabelValues("names", "miss").Inc()

	asset, err := s.provider.GetAsset(ctx, symbol)
	if err == nil && asset.Name != "" {
		s.nameCache.Set(symbol, asset.Name)
		return asset.Name
	}
	if err != nil {
		s.logger.Warn("Asset metadata lookup failed",
			zap.String("symbol", symbol),
			zap.Error(err))
	}

	if name, ok := fallbackNames[symbol]; ok {
		s.nameCache.Set(symbol, name)
		return name
	}
	return symbol
}

// Search returns active assets whose symbol or name matches the query,
// capped at limit. The asset universe is fetched once and memoized with a
// TTL.
func (s *AssetService) Search(ctx context.Context, query string, limit int) ([]model.Asset, error) {
	assets, err := s.activeAssets(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return []model.Asset{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	// Symbol prefix matches rank ahead of name substring matches.
	var bySymbol, byName []model.Asset
	for _, a := range assets {
		if strings.HasPrefix(a.Symbol, query) {
			bySymbol = append(bySymbol, a)
		} else if strings.Contains(strings.ToUpper(a.Name), query) {
			byName = append(byName, a)
		}
	}

	results := append(bySymbol, byName...)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *AssetService) activeAssets(ctx context.Context) ([]model.Asset, error) {
	if cached, ok := s.assetsCache.Get(assetsCacheKey); ok {
		s.metrics.CacheLookups.WithLabelValues("assets", "hit").Inc()
		return cached.([]model.Asset), nil
	}
	s.metrics.CacheLookups.WithLabelValues("assets", "miss").Inc()

	assets, err := s.provider.GetActiveAssets(ctx)
	if err != nil {
		return nil, err
	}
	s.assetsCache.Set(assetsCacheKey, assets)
	return assets, nil
}
