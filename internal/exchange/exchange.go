package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

// Parser turns one raw wire payload into canonical records. Implementations
// are pure aside from schema knowledge: no I/O, no state. A payload that does
// not match the expected schema fails with models.ErrMalformedPayload.
type Parser interface {
	ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error)
	ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error)
	ParseFundingRate(market models.MarketType, raw []byte) ([]models.FundingRateMsg, error)
}

// Exchange bundles everything the orchestrator needs to crawl one venue:
// websocket dialect, channel naming, payload parsing and the REST
// collaborators for discovery and snapshots.
type Exchange interface {
	Name() string

	// Markets enumerates the market types this venue offers.
	Markets() []models.MarketType

	// Channels enumerates the streaming channel types available on a market.
	Channels(market models.MarketType) []models.MessageType

	// Endpoint resolves the websocket endpoint for a market. Some venues
	// need a REST round trip here (token bootstrap), hence the context.
	Endpoint(ctx context.Context, market models.MarketType) (string, error)

	// Protocol returns the websocket dialect for a market.
	Protocol(market models.MarketType) wsclient.Protocol

	// ChannelName renders the venue's native channel string for one symbol.
	ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error)

	// MaxSubscriptions is the venue's cap on channels per physical
	// connection. Zero means unlimited.
	MaxSubscriptions(market models.MarketType) int

	Parser() Parser

	// FetchSymbols lists the active symbols for a market type.
	FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error)

	// FetchL2Snapshot fetches one full order book over REST.
	FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error)
}

// L2Streamer is an optional engine variant. Venues whose official SDK owns
// the order-book delta stream (kucoin futures) implement it; the orchestrator
// prefers it over the generic engine for L2Event crawls on those markets.
type L2Streamer interface {
	StreamsL2(market models.MarketType) bool
	StreamL2(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration, emit func(models.OrderBookMsg)) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Exchange)
)

// Register adds an exchange adapter. Adapters call it from init().
func Register(ex Exchange) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(ex.Name())] = ex
}

// Lookup returns the adapter for an exchange name.
func Lookup(name string) (Exchange, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ex, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown exchange %q", models.ErrConfiguration, name)
	}
	return ex, nil
}

// Names lists registered exchanges in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportsMarket reports whether the venue offers the market type.
func SupportsMarket(ex Exchange, market models.MarketType) bool {
	for _, m := range ex.Markets() {
		if m == market {
			return true
		}
	}
	return false
}

// SupportsChannel reports whether the venue offers the channel on the market.
func SupportsChannel(ex Exchange, market models.MarketType, msgType models.MessageType) bool {
	for _, t := range ex.Channels(market) {
		if t == msgType {
			return true
		}
	}
	return false
}
