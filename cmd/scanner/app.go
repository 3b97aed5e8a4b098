package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"contango-scanner/internal/contango"
	"contango-scanner/internal/fx"
	"contango-scanner/internal/metrics"
	"contango-scanner/internal/publisher"
	"contango-scanner/internal/venue"
	"contango-scanner/internal/venue/bithumb"
	"contango-scanner/internal/venue/gate"
	"contango-scanner/internal/venue/hyperliquid"
	"contango-scanner/internal/venue/okx"
	"contango-scanner/internal/venue/upbit"
)

// usdtKrwKey is the instrument key of the KRW->USD reference ticker on
// both Korean venues.
const usdtKrwKey = "KRW-USDT"

const catalogRPS = 5.0

// warmup gives the streams a moment to populate before the first scan.
const warmup = time.Second

// app owns the venue feeds and the evaluation engine for one run.
type app struct {
	engine     *contango.Engine
	streams    []*venue.StreamClient
	spotVenues []venue.ID
	futVenues  []venue.ID
	pub        *publisher.RedisPublisher
	metricsSrv *metrics.Server
}

type catalogLoader func(context.Context, *venue.RESTClient) ([]venue.Instrument, error)

// buildApp loads every enabled venue's catalog and wires streams and
// engine. A venue whose catalog fails is excluded for the whole run.
func buildApp(ctx context.Context) (*app, error) {
	a := &app{}

	var spotFeeds []contango.SpotFeed
	spotLoaders := []struct {
		id       venue.ID
		disabled bool
		load     catalogLoader
		proto    func([]string) venue.Protocol
	}{
		{venue.Upbit, flagNoUpbit, upbit.LoadCatalog, func(keys []string) venue.Protocol { return upbit.NewProtocol(keys) }},
		{venue.Bithumb, flagNoBithumb, bithumb.LoadCatalog, func(keys []string) venue.Protocol { return bithumb.NewProtocol(keys) }},
	}
	for _, sl := range spotLoaders {
		if sl.disabled {
			continue
		}
		instruments, cache, ok := a.loadVenue(ctx, sl.id, sl.load, sl.proto)
		if !ok {
			continue
		}
		a.spotVenues = append(a.spotVenues, sl.id)
		spotFeeds = append(spotFeeds, contango.SpotFeed{
			Venue:       sl.id,
			Instruments: instruments,
			Cache:       cache,
			USDTKey:     usdtKrwKey,
		})
	}

	var futFeeds []contango.FuturesFeed
	for _, name := range strings.Split(flagFutures, ",") {
		var (
			id    venue.ID
			load  catalogLoader
			proto func([]string) venue.Protocol
		)
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "okx":
			id, load = venue.OKX, okx.LoadCatalog
			proto = func(keys []string) venue.Protocol { return okx.NewProtocol(keys) }
		case "gate":
			id, load = venue.Gate, gate.LoadCatalog
			proto = func(keys []string) venue.Protocol { return gate.NewProtocol(keys) }
		case "hyper", "hyperliquid":
			id, load = venue.Hyperliquid, hyperliquid.LoadCatalog
			proto = func(keys []string) venue.Protocol { return hyperliquid.NewProtocol(keys) }
		case "":
			continue
		default:
			log.Warn().Str("venue", name).Msg("unknown futures venue, skipping")
			continue
		}
		instruments, cache, ok := a.loadVenue(ctx, id, load, proto)
		if !ok {
			continue
		}
		a.futVenues = append(a.futVenues, id)
		futFeeds = append(futFeeds, contango.FuturesFeed{
			Venue:       id,
			Instruments: instruments,
			Cache:       cache,
		})
	}

	if len(spotFeeds) == 0 {
		return nil, fmt.Errorf("no spot venues available")
	}
	if len(futFeeds) == 0 {
		return nil, fmt.Errorf("no futures venues available")
	}

	a.engine = contango.NewEngine(fx.NewCache(0), spotFeeds, futFeeds)
	return a, nil
}

// loadVenue runs a catalog load and builds the venue's stream client.
// Failures and empty catalogs exclude the venue.
func (a *app) loadVenue(ctx context.Context, id venue.ID, load catalogLoader, proto func([]string) venue.Protocol) ([]venue.Instrument, *venue.Cache, bool) {
	rest := venue.NewRESTClient(id, catalogRPS)
	instruments, err := load(ctx, rest)
	if err != nil {
		log.Error().Err(err).Str("venue", string(id)).Msg("catalog load failed, excluding venue")
		return nil, nil, false
	}
	if len(instruments) == 0 {
		log.Warn().Str("venue", string(id)).Msg("empty catalog, excluding venue")
		return nil, nil, false
	}

	keys := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		keys = append(keys, inst.Key)
	}
	cache := venue.NewCache()
	a.streams = append(a.streams, venue.NewStreamClient(proto(keys), cache))

	log.Info().Str("venue", string(id)).Int("instruments", len(instruments)).Msg("catalog loaded")
	return instruments, cache, true
}

// start launches the streams and the optional metrics server and Redis
// publisher.
func (a *app) start(ctx context.Context) {
	for _, s := range a.streams {
		go s.Run(ctx)
	}

	if addr := getEnv("METRICS_ADDR", ""); addr != "" {
		a.metricsSrv = metrics.NewServer(addr)
		go func() {
			if err := a.metricsSrv.Start(); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		pub, err := publisher.NewRedisPublisher(addr)
		if err != nil {
			log.Error().Err(err).Msg("redis publisher disabled")
		} else {
			a.pub = pub
		}
	}
}

// stop tears down the optional services.
func (a *app) stop() {
	if a.pub != nil {
		a.pub.Close()
	}
	if a.metricsSrv != nil {
		a.metricsSrv.Stop()
	}
}

// allVenues returns every venue participating in this run.
func (a *app) allVenues() []venue.ID {
	out := make([]venue.ID, 0, len(a.spotVenues)+len(a.futVenues))
	out = append(out, a.spotVenues...)
	out = append(out, a.futVenues...)
	return out
}
