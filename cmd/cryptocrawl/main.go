package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptocrawl/config"
	"cryptocrawl/internal/crawler"
	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/sink"
	"cryptocrawl/logger"
	"cryptocrawl/models"

	_ "cryptocrawl/internal/exchange/binance"
	_ "cryptocrawl/internal/exchange/bithumb"
	_ "cryptocrawl/internal/exchange/bybit"
	_ "cryptocrawl/internal/exchange/huobi"
	_ "cryptocrawl/internal/exchange/kucoin"
	_ "cryptocrawl/internal/exchange/okx"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	exchangeName := flag.String("exchange", "", "Exchange to crawl ("+strings.Join(exchange.Names(), ", ")+")")
	marketArg := flag.String("market", "spot", "Market type: spot, linear_future, inverse_future, linear_swap, inverse_swap, option")
	channelArg := flag.String("channel", "trade", "Channel: trade, l2_event, l2_snapshot, funding_rate")
	symbolsArg := flag.String("symbols", "", "Comma separated symbol list; empty discovers the active symbols")
	durationArg := flag.Duration("duration", 0, "How long to crawl; 0 runs until interrupted")

	flag.Parse()

	if *exchangeName == "" {
		log.Error("-exchange is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Error("Failed to load configuration")
			os.Exit(1)
		}
		cfg = config.DefaultConfig()
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}

	market, err := models.ParseMarketType(*marketArg)
	if err != nil {
		log.WithError(err).Error("invalid -market")
		os.Exit(1)
	}
	msgType, err := models.ParseMessageType(*channelArg)
	if err != nil {
		log.WithError(err).Error("invalid -channel")
		os.Exit(1)
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsArg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}

	log.WithFields(logger.Fields{
		"service":  cfg.Crawler.Name,
		"version":  cfg.Crawler.Version,
		"exchange": *exchangeName,
		"market":   market,
		"channel":  msgType,
	}).Info("starting cryptocrawl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out sink.Sink
	if cfg.Storage.S3.Enabled {
		s3Sink, err := sink.NewS3Sink(ctx, cfg.Storage.S3)
		if err != nil {
			log.WithError(err).Error("failed to initialize s3 sink")
			os.Exit(1)
		}
		s3Sink.Start(ctx)
		defer s3Sink.Stop()
		out = s3Sink
	} else {
		out = sink.NewWriterSink(os.Stdout)
	}

	c, err := crawler.New(*exchangeName, cfg, out)
	if err != nil {
		log.WithError(err).Error("failed to initialize crawler")
		os.Exit(1)
	}

	handle := c.Start(ctx, msgType, market, symbols, *durationArg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
		select {
		case <-handle.Done():
		case <-time.After(30 * time.Second):
			log.Warn("shutdown timed out")
		}
	case <-handle.Done():
	}

	if err := handle.Wait(); err != nil {
		log.WithError(err).Error("crawl failed")
		os.Exit(1)
	}
	log.Info("crawl finished")
}
