package main

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"paging"
	"paging/kvsource"
	"paging/loader"
)

type config struct {
	Records     int                        `env:"PAGING_RECORDS" envDefault:"1000"`
	PageSize    int                        `env:"PAGING_PAGE_SIZE" envDefault:"20"`
	Prefetch    int                        `env:"PAGING_PREFETCH" envDefault:"30"`
	InitialLoad int                        `env:"PAGING_INITIAL_LOAD" envDefault:"60"`
	Mode        string                     `env:"PAGING_MODE" envDefault:"tiled"`
	Compression kvsource.CompressAlgorithm `env:"PAGING_COMPRESSION" envDefault:"snappy"`
	BlockSize   int                        `env:"PAGING_BLOCK_SIZE" envDefault:"64"`
	LogLevel    string                     `env:"PAGING_LOG_LEVEL" envDefault:"info"`
	// positions visited in order, the first one seeds the session
	Scroll []int `env:"PAGING_SCROLL" envDefault:"500,520,100,999" envSeparator:","`
}

// session is what both loader kinds offer once created.
type session interface {
	Init(ctx context.Context, position int) error
	LoadAround(ctx context.Context, index int) error
	Snapshot() *paging.PagedStorage[[]byte, kvsource.Record]
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.WithError(err).Fatal("parse env")
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("parse log level")
	}
	log.SetLevel(level)

	if err := run(context.Background(), cfg); err != nil {
		log.WithError(err).Error("paging demo failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	logger := log.WithField("mode", cfg.Mode)

	records := make([]kvsource.Record, 0, cfg.Records)
	for i := 0; i < cfg.Records; i++ {
		records = append(records, kvsource.Record{
			Key:   []byte(fmt.Sprintf("record-%08d", i)),
			Value: []byte(fmt.Sprintf("payload of record %d, payload of record %d", i, i)),
		})
	}
	source, err := kvsource.New(records, &kvsource.Options{
		BlockSize:   cfg.BlockSize,
		Compression: cfg.Compression,
		Logger:      logger,
	})
	if err != nil {
		return errors.Wrap(err, "build source")
	}
	logger.WithFields(log.Fields{
		"records": cfg.Records,
		"bytes":   source.EncodedSize(),
	}).Info("source ready")

	lc := loader.Config{
		PageSize:         cfg.PageSize,
		PrefetchDistance: cfg.Prefetch,
		InitialLoadSize:  cfg.InitialLoad,
	}
	options := &paging.Options{Logger: logger}
	callback := paging.LogCallback{Logger: logger}

	var s session
	switch cfg.Mode {
	case "tiled":
		s, err = loader.NewTiled[[]byte, kvsource.Record](source, lc, callback, options)
	case "contiguous":
		s, err = loader.NewContiguous[[]byte, kvsource.Record](source, lc, callback, options)
	default:
		err = errors.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return err
	}
	if len(cfg.Scroll) == 0 {
		return errors.New("nothing to scroll to")
	}

	if err := s.Init(ctx, cfg.Scroll[0]); err != nil {
		return err
	}
	for _, position := range cfg.Scroll {
		if err := s.LoadAround(ctx, position); err != nil {
			return errors.Wrapf(err, "scroll to %d", position)
		}
		snap := s.Snapshot()
		entry := logger.WithFields(log.Fields{
			"position": position,
			"size":     snap.Size(),
			"leading":  snap.ComputeLeadingNulls(),
			"trailing": snap.ComputeTrailingNulls(),
			"pages":    snap.PageCount(),
			"tiled":    snap.IsTiled(),
		})
		if position < 0 || position >= snap.Size() {
			entry.Warn("position outside the list")
			continue
		}
		r, ok, err := snap.Get(position)
		if err != nil {
			return err
		}
		if !ok {
			entry.Info("position not loaded")
			continue
		}
		entry.WithField("key", string(r.Key)).Info("scrolled")
	}
	return nil
}
