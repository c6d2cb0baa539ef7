package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"cryptocrawl/config"
	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/sink"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/logger"
	"cryptocrawl/models"
)

// Crawler orchestrates crawls against one exchange: validation, symbol
// discovery, connection partitioning and envelope delivery to the sink.
type Crawler struct {
	ex   exchange.Exchange
	cfg  *config.Config
	sink sink.Sink
	log  *logger.Entry
}

func New(exchangeName string, cfg *config.Config, s sink.Sink) (*Crawler, error) {
	ex, err := exchange.Lookup(exchangeName)
	if err != nil {
		return nil, err
	}
	return &Crawler{
		ex:   ex,
		cfg:  cfg,
		sink: s,
		log:  logger.GetLogger().WithComponent("crawler").WithFields(logger.Fields{"exchange": ex.Name()}),
	}, nil
}

// Crawl dispatches on the channel type. Symbols may be empty, in which case
// the active symbol list is discovered. A zero duration crawls until the
// context is cancelled.
func (c *Crawler) Crawl(ctx context.Context, msgType models.MessageType, market models.MarketType, symbols []string, duration time.Duration) error {
	switch msgType {
	case models.Trade, models.L2Event, models.FundingRate:
		return c.crawlStream(ctx, msgType, market, symbols, duration)
	case models.L2Snapshot:
		return c.CrawlL2Snapshot(ctx, market, symbols, duration)
	}
	return fmt.Errorf("%w: %q", models.ErrUnsupportedChannel, msgType)
}

func (c *Crawler) CrawlTrade(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration) error {
	return c.crawlStream(ctx, models.Trade, market, symbols, duration)
}

func (c *Crawler) CrawlL2Event(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration) error {
	return c.crawlStream(ctx, models.L2Event, market, symbols, duration)
}

func (c *Crawler) CrawlFundingRate(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration) error {
	return c.crawlStream(ctx, models.FundingRate, market, symbols, duration)
}

// validate fails fast, before any network traffic, when the venue does not
// offer the market or the channel on that market.
func (c *Crawler) validate(msgType models.MessageType, market models.MarketType) error {
	if !exchange.SupportsMarket(c.ex, market) {
		return fmt.Errorf("%w: %s does not list %s markets", models.ErrUnsupportedMarketType, c.ex.Name(), market)
	}
	if !exchange.SupportsChannel(c.ex, market, msgType) {
		return fmt.Errorf("%w: %s offers no %s channel on %s", models.ErrUnsupportedChannel, c.ex.Name(), msgType, market)
	}
	return nil
}

// resolveSymbols returns the explicit list untouched, otherwise discovers the
// active symbols with bounded retries and falls back to the configured list
// when discovery keeps failing.
func (c *Crawler) resolveSymbols(ctx context.Context, market models.MarketType, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	retry := c.cfg.Reader.Retry
	bo := &backoff.Backoff{
		Min:    retry.BaseDelay,
		Max:    retry.MaxDelay,
		Factor: float64(retry.BackoffMultiplier),
	}

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		symbols, err := c.ex.FetchSymbols(ctx, market)
		if err == nil && len(symbols) > 0 {
			c.log.WithFields(logger.Fields{"market": market, "symbols": len(symbols)}).Info("symbols discovered")
			return symbols, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %s listed no %s symbols", models.ErrDiscovery, c.ex.Name(), market)
		}
		lastErr = err
		c.log.WithError(err).WithFields(logger.Fields{"attempt": attempt}).Warn("symbol discovery failed")
		if attempt < retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(bo.Duration()):
			}
		}
	}

	if fallback := c.cfg.Exchange(c.ex.Name()).Fallback(market); len(fallback) > 0 {
		c.log.WithFields(logger.Fields{"market": market, "symbols": len(fallback)}).Warn("using fallback symbol list")
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %s %s discovery exhausted: %v", models.ErrDiscovery, c.ex.Name(), market, lastErr)
}

func (c *Crawler) crawlStream(ctx context.Context, msgType models.MessageType, market models.MarketType, symbols []string, duration time.Duration) error {
	if err := c.validate(msgType, market); err != nil {
		return err
	}
	symbols, err := c.resolveSymbols(ctx, market, symbols)
	if err != nil {
		return err
	}

	// Venues whose official SDK owns the book delta stream bypass the
	// generic engine.
	if msgType == models.L2Event {
		if streamer, ok := c.ex.(exchange.L2Streamer); ok && streamer.StreamsL2(market) {
			return streamer.StreamL2(ctx, market, symbols, duration, func(book models.OrderBookMsg) {
				c.emitL2(book)
			})
		}
	}

	channels := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if _, err := pairs.Normalize(symbol, c.ex.Name()); err != nil {
			c.log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("skipping symbol")
			continue
		}
		ch, err := c.ex.ChannelName(msgType, market, symbol)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return fmt.Errorf("%w: no usable symbols for %s %s", models.ErrConfiguration, c.ex.Name(), market)
	}

	maxSubs := c.cfg.Exchange(c.ex.Name()).MaxSubscriptions
	if maxSubs <= 0 {
		maxSubs = c.ex.MaxSubscriptions(market)
	}
	partitions := partition(channels, maxSubs)

	endpoint, err := c.ex.Endpoint(ctx, market)
	if err != nil {
		return err
	}

	opts := wsclient.Options{
		IdleTimeout:   c.cfg.Engine.IdleTimeout,
		BackoffMin:    c.cfg.Engine.BackoffMin,
		BackoffMax:    c.cfg.Engine.BackoffMax,
		MaxReconnects: c.cfg.Engine.MaxReconnects,
	}

	c.log.WithFields(logger.Fields{
		"channel":     msgType,
		"market":      market,
		"symbols":     len(symbols),
		"connections": len(partitions),
	}).Info("starting crawl")

	// A terminal failure on any engine ends the whole crawl: the first
	// error cancels the sibling partitions and is returned to the caller.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(partitions))
	for _, part := range partitions {
		client := wsclient.New(endpoint, c.ex.Protocol(market), c.frameHandler(msgType, market), opts)
		if err := client.Subscribe(part...); err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.Run(runCtx, duration); err != nil {
				errs <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// frameHandler parses each raw frame and forwards the resulting records as
// envelopes. Payloads that fail to parse are dropped with a warning so one
// bad frame cannot stall a crawl.
func (c *Crawler) frameHandler(msgType models.MessageType, market models.MarketType) func(raw []byte) {
	parser := c.ex.Parser()
	return func(raw []byte) {
		switch msgType {
		case models.Trade:
			trades, err := parser.ParseTrade(market, raw)
			if err != nil {
				c.dropFrame(err, raw)
				return
			}
			for i := range trades {
				c.emit(trades[i].Symbol, trades[i].Pair, market, models.Trade, trades[i].Timestamp, trades[i])
			}
		case models.L2Event:
			books, err := parser.ParseL2(market, raw)
			if err != nil {
				c.dropFrame(err, raw)
				return
			}
			for i := range books {
				c.emitL2(books[i])
			}
		case models.FundingRate:
			rates, err := parser.ParseFundingRate(market, raw)
			if err != nil {
				c.dropFrame(err, raw)
				return
			}
			for i := range rates {
				c.emit(rates[i].Symbol, rates[i].Pair, market, models.FundingRate, rates[i].Timestamp, rates[i])
			}
		}
	}
}

func (c *Crawler) dropFrame(err error, raw []byte) {
	entry := c.log.WithError(err)
	if errors.Is(err, models.ErrMalformedPayload) {
		entry = entry.WithFields(logger.Fields{"payload_bytes": len(raw)})
	}
	entry.Warn("dropping frame")
}

func (c *Crawler) emitL2(book models.OrderBookMsg) {
	c.emit(book.Symbol, book.Pair, book.Market, models.L2Event, book.Timestamp, book)
}

func (c *Crawler) emit(symbol, pair string, market models.MarketType, msgType models.MessageType, ts int64, record interface{}) {
	raw, err := json.Marshal(record)
	if err != nil {
		c.log.WithError(err).Warn("failed to marshal record")
		return
	}
	c.sink.Write(models.NewMessage(c.ex.Name(), market, symbol, pair, msgType, ts, raw))
}

// CrawlL2Snapshot polls the venue's REST depth endpoint for every symbol,
// pacing requests so one full round fits in the configured interval.
func (c *Crawler) CrawlL2Snapshot(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration) error {
	if err := c.validate(models.L2Snapshot, market); err != nil {
		return err
	}
	symbols, err := c.resolveSymbols(ctx, market, symbols)
	if err != nil {
		return err
	}

	interval := time.Duration(c.cfg.Snapshot.IntervalMs) * time.Millisecond
	limiter := rate.NewLimiter(rate.Every(interval/time.Duration(len(symbols))), 1)

	var deadline time.Time
	if duration > 0 {
		deadline = time.Now().Add(duration)
	}

	c.log.WithFields(logger.Fields{
		"market":   market,
		"symbols":  len(symbols),
		"interval": interval,
	}).Info("starting snapshot poll")

	for {
		for _, symbol := range symbols {
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return nil
			}
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			body, err := c.ex.FetchL2Snapshot(ctx, market, symbol)
			if err != nil {
				c.log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("snapshot fetch failed")
				continue
			}
			pair, err := pairs.Normalize(symbol, c.ex.Name())
			if err != nil {
				c.log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("skipping symbol")
				continue
			}
			c.sink.Write(models.NewMessage(
				c.ex.Name(), market, symbol, pair,
				models.L2Snapshot, time.Now().UnixMilli(), body,
			))
		}
	}
}

// partition splits channels into chunks no larger than size. A non-positive
// size keeps everything on one connection.
func partition(channels []string, size int) [][]string {
	if size <= 0 || len(channels) <= size {
		return [][]string{channels}
	}
	var out [][]string
	for len(channels) > 0 {
		n := size
		if n > len(channels) {
			n = len(channels)
		}
		out = append(out, channels[:n])
		channels = channels[n:]
	}
	return out
}
