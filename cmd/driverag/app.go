package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"driverag/internal/answer"
	"driverag/internal/chunker"
	"driverag/internal/config"
	"driverag/internal/domain"
	"driverag/internal/embedding"
	"driverag/internal/embedding/hashing"
	"driverag/internal/embedding/openai"
	"driverag/internal/extract"
	"driverag/internal/logging"
	"driverag/internal/metrics"
	"driverag/internal/service"
	"driverag/internal/source"
	"driverag/internal/source/drive"
	"driverag/internal/source/localfs"
	"driverag/internal/vectorstore"
	"driverag/internal/vectorstore/chromem"
	"driverag/internal/vectorstore/qdrant"
)

// app holds the components assembled from one configuration.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	svc     *service.RAGService
	closers []io.Closer
	server  *http.Server
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(reg)
	}

	src, err := a.newSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	tokenizer, err := chunker.NewTiktoken(cfg.Chunker.Encoding)
	if err != nil {
		a.Close()
		return nil, err
	}
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		a.Close()
		return nil, err
	}
	backend, err := newBackend(cfg.VectorIndex)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, backend)
	distance, err := vectorstore.ParseDistance(cfg.VectorIndex.Distance)
	if err != nil {
		a.Close()
		return nil, err
	}
	answerer, err := newAnswerer(cfg.Answer)
	if err != nil {
		a.Close()
		return nil, err
	}

	index := vectorstore.NewIndex(backend, vectorstore.Options{
		Collection:          cfg.VectorIndex.Collection,
		Dimension:           emb.Dimension(),
		Distance:            distance,
		ContentAddressedIDs: cfg.VectorIndex.ContentAddressedIDs,
	}, logger)

	a.svc = service.NewRAGService(
		source.NewTraverser(src, extract.NewExtractor(src, logger), logger, m),
		chunker.NewTokenChunker(tokenizer, cfg.Chunker.TokenLimit),
		emb,
		index,
		answerer,
		service.Options{
			Distance:    distance,
			BatchSize:   cfg.VectorIndex.BatchSize,
			SearchLimit: cfg.Search.Limit,
		},
		logger,
		m,
	)
	logger.Debug("components ready",
		zap.String("source", cfg.Source.Type),
		zap.String("embedder", emb.Name()),
		zap.String("index", cfg.VectorIndex.Type),
		zap.String("collection", cfg.VectorIndex.Collection),
	)
	return a, nil
}

func (a *app) newSource(ctx context.Context) (domain.FolderSource, error) {
	switch a.cfg.Source.Type {
	case "local":
		src, err := localfs.Open(a.cfg.Source.Local.Root)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, src)
		return src, nil
	case "drive":
		return drive.NewFromCredentialsFile(ctx, a.cfg.Source.Drive.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown source: %s", a.cfg.Source.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Dimension:         cfg.OpenAI.Dimension,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			Burst:             cfg.OpenAI.Burst,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newBackend(cfg config.VectorIndexConfig) (vectorstore.Backend, error) {
	switch cfg.Type {
	case "chromem":
		return chromem.New(chromem.Config{Path: cfg.Chromem.Path, Compress: cfg.Chromem.Compress})
	case "qdrant":
		return qdrant.New(qdrant.Config{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.UseTLS,
		})
	default:
		return nil, fmt.Errorf("unknown vector index: %s", cfg.Type)
	}
}

func newAnswerer(cfg config.AnswerConfig) (domain.Answerer, error) {
	switch cfg.Type {
	case "extractive":
		return answer.NewExtractive(cfg.Extractive.MaxSentences), nil
	case "openai":
		return answer.NewChat(answer.ChatConfig{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
		})
	default:
		return nil, fmt.Errorf("unknown answerer: %s", cfg.Type)
	}
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	a.server = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", a.cfg.Metrics.Addr))
}

func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
