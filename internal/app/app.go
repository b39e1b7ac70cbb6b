// Package app assembles the intake components from configuration. Both binaries share it:
// the HTTP server and the Camunda worker manager run the same conversation core.
package app

import (
	"context"
	"fmt"
	"time"

	"subscription-intake/internal/api"
	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/auth"
	"subscription-intake/internal/common/aws"
	"subscription-intake/internal/common/config"
	"subscription-intake/internal/common/database"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/observability"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/intake/machine"
	"subscription-intake/internal/intake/ratelimit"
	"subscription-intake/internal/intake/service"
	"subscription-intake/internal/intake/topic"
	"subscription-intake/internal/store"
	classifytopic "subscription-intake/internal/workers/ai-conversation/classify-topic"
	discoverbenchmark "subscription-intake/internal/workers/ai-conversation/discover-benchmark"
	extractlineitems "subscription-intake/internal/workers/ai-conversation/extract-line-items"
	generatebrief "subscription-intake/internal/workers/ai-conversation/generate-brief"
	emailbrief "subscription-intake/internal/workers/communication/email-brief"
)

// App holds the assembled components.
type App struct {
	Config *config.Config
	Logger logger.Logger
	Obs    *observability.Observability

	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Elastic  *database.ElasticsearchClient

	Generator  genai.Generator
	Resolver   benchmarks.Resolver
	Discoverer *benchmarks.Discoverer // nil when discovery is off
	Store      store.Store
	Keycloak   *auth.KeycloakClient

	Extractor  *extractlineitems.Handler
	Classifier *classifytopic.Handler
	Advisor    *generatebrief.Handler
	Discovery  *discoverbenchmark.Handler
	Email      *emailbrief.Service
	EmailCfg   *emailbrief.Config

	Machine *machine.Machine
	Checks  map[string]api.ReadinessCheck

	closers []func() error
}

// New connects the configured backends and builds the conversation core. Stores and
// integrations are optional; a backend that stays unreachable after retries is left out and
// the service degrades instead of failing to start.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: log,
		Obs:    obs,
		Checks: map[string]api.ReadinessCheck{},
	}

	a.connectPostgres(ctx)
	a.connectRedis(ctx)
	a.connectElasticsearch(ctx)

	a.Generator = genai.NewClient(cfg.APIs.GenAI, log)
	if cfg.APIs.GenAI.APIKey == "" {
		log.Warn("generation api key missing, extraction and briefs will fall back", nil)
	}

	if err := a.buildResolver(log); err != nil {
		a.Close()
		return nil, err
	}

	var pg *store.Postgres
	if a.Postgres != nil {
		pg = store.NewPostgres(a.Postgres.DB)
	}
	var rd *store.Redis
	if a.Redis != nil {
		rd = store.NewRedis(a.Redis.Client, a.Redis.TTL, a.Redis.Prefix)
	}
	a.Store = store.Compose(pg, rd, log)
	if a.Store == nil {
		log.Warn("no session store configured, running in stateless mode", nil)
	}

	if err := a.buildEmail(ctx); err != nil {
		a.Close()
		return nil, err
	}

	kc := cfg.Auth.Keycloak
	if k := auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret); k.Enabled() {
		a.Keycloak = k
	}

	a.Extractor = extractlineitems.NewHandler(extractlineitems.LoadConfig(), a.Generator, log)
	a.Classifier = classifytopic.NewHandler(classifytopic.LoadConfig(), a.Generator, log)

	mcfg := machine.Config{
		RequireSignin: cfg.Intake.RequireSignin,
		MaxLineItems:  cfg.Intake.MaxLineItems,
	}
	if a.Discoverer != nil {
		mcfg.Discoverer = a.Discoverer
	}
	a.Machine = machine.New(a.Resolver, a.Extractor, a.Advisor, mcfg, log)

	return a, nil
}

// Service builds the turn service. limiter may be nil.
func (a *App) Service(limiter *ratelimit.Limiter) *service.Service {
	var mailer service.BriefMailer
	if a.Email != nil {
		mailer = a.Email
	}
	return service.NewService(service.ServiceDependencies{
		Limiter: limiter,
		Store:   a.Store,
		Gateway: topic.NewGateway(a.Classifier, a.Logger),
		Machine: a.Machine,
		Mailer:  mailer,
		Obs:     a.Obs,
		Logger:  a.Logger,
	}, service.Config{
		MaxMessageChars: a.Config.Intake.MaxMessageChars,
		EmailBrief:      a.Config.Intake.EmailBrief,
		TurnTimeout:     config.GetDuration(a.Config.Intake.TurnTimeout),
	})
}

// Close releases every connection New opened.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

func (a *App) connectPostgres(ctx context.Context) {
	pgCfg := a.Config.Database.Postgres
	if !pgCfg.Enabled() {
		return
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, a.Logger, "PostgreSQL connection", func() error {
		var err error
		pg, err = database.NewPostgres(pgCfg)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	})
	if err != nil {
		a.Logger.Error("postgres unavailable, sessions fall back to redis or stateless mode", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := pg.Migrate(ctx, store.Schema...); err != nil {
		a.Logger.Error("postgres migration failed", map[string]interface{}{"error": err.Error()})
		pg.Close()
		return
	}

	a.Postgres = pg
	a.closers = append(a.closers, pg.Close)
	a.Checks["postgres"] = pg.Ping
	a.Logger.Info("PostgreSQL connected successfully", nil)
}

func (a *App) connectRedis(ctx context.Context) {
	rCfg := a.Config.Database.Redis
	if !rCfg.Enabled() {
		return
	}

	var rd *database.RedisClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, a.Logger, "Redis connection", func() error {
		var err error
		rd, err = database.NewRedis(rCfg)
		if err != nil {
			return err
		}
		if err := rd.Ping(ctx); err != nil {
			rd.Close()
			return err
		}
		return nil
	})
	if err != nil {
		a.Logger.Error("redis unavailable, session cache disabled", map[string]interface{}{"error": err.Error()})
		return
	}

	a.Redis = rd
	a.closers = append(a.closers, rd.Close)
	a.Checks["redis"] = rd.Ping
	a.Logger.Info("Redis connected successfully", nil)
}

func (a *App) connectElasticsearch(ctx context.Context) {
	esCfg := a.Config.Database.Elasticsearch
	if !esCfg.Enabled() {
		return
	}

	var es *database.ElasticsearchClient
	err := retryWithBackoff(ctx, 5, 2*time.Second, a.Logger, "Elasticsearch connection", func() error {
		var err error
		es, err = database.NewElasticsearch(esCfg)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	})
	if err != nil {
		a.Logger.Error("elasticsearch unavailable, using the seed catalog only", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := es.EnsureIndex(ctx, esCfg.BenchmarkIndex, benchmarks.IndexMapping); err != nil {
		a.Logger.Error("benchmark index setup failed, using the seed catalog only", map[string]interface{}{"error": err.Error()})
		return
	}

	a.Elastic = es
	a.Checks["elasticsearch"] = es.Ping
	a.Logger.Info("Elasticsearch connected successfully", nil)
}

// buildResolver layers the seed catalog, the Elasticsearch index and discovery.
func (a *App) buildResolver(log logger.Logger) error {
	catalog, err := benchmarks.LoadCatalog(a.Config.Benchmarks.CatalogPath)
	if err != nil {
		log.Warn("benchmark catalog not loaded, starting empty", map[string]interface{}{
			"path":  a.Config.Benchmarks.CatalogPath,
			"error": err.Error(),
		})
		if catalog, err = benchmarks.NewCatalog(nil); err != nil {
			return fmt.Errorf("empty catalog: %w", err)
		}
	}

	var (
		base benchmarks.Resolver = catalog
		sink benchmarks.Sink     = catalog
	)
	if a.Elastic != nil {
		idx := benchmarks.NewIndex(a.Elastic.Client, a.Config.Database.Elasticsearch.BenchmarkIndex, catalog, log)
		base, sink = idx, idx
	}

	a.Advisor = generatebrief.NewHandler(generatebrief.LoadConfig(), a.Generator, base, log)

	dcfg := discoverbenchmark.LoadConfig(a.Config.APIs.Search)
	dcfg.Timeout = config.GetDuration(a.Config.Benchmarks.DiscoveryTimeout)
	if !a.Config.Benchmarks.DiscoveryEnabled {
		sink = nil
	}
	a.Discovery = discoverbenchmark.NewHandler(dcfg, a.Generator, sink, log)

	a.Resolver = base
	if d := a.Discovery.Discoverer(); d != nil {
		a.Discoverer = d
		log.Info("benchmark discovery enabled", map[string]interface{}{"search": a.Config.APIs.Search.Enabled()})
	}
	log.Info("benchmark catalog loaded", map[string]interface{}{"entries": catalog.Len(), "elasticsearch": a.Elastic != nil})
	return nil
}

func (a *App) buildEmail(ctx context.Context) error {
	sesCfg := a.Config.Integrations.AWS.SES
	if !sesCfg.Enabled {
		return nil
	}

	sesClient, err := aws.NewSESClient(ctx, a.Config.Integrations.AWS.Region)
	if err != nil {
		return fmt.Errorf("ses client: %w", err)
	}

	ecfg := emailbrief.DefaultConfig()
	ecfg.DefaultFrom = sesCfg.FromEmail
	if err := ecfg.Validate(); err != nil {
		return fmt.Errorf("email-brief config: %w", err)
	}

	a.EmailCfg = ecfg
	a.Email = emailbrief.NewService(emailbrief.ServiceDependencies{Sender: sesClient, Logger: a.Logger}, ecfg)
	return nil
}

// retryWithBackoff attempts to execute a function with exponential backoff.
func retryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string, operation func() error) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
