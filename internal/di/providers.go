package di

import (
	"context"
	"fmt"
	"time"

	"github.com/sjfremen/fred/internal/domain/repository"
	"github.com/sjfremen/fred/internal/handler/api"
	internalrepo "github.com/sjfremen/fred/internal/repository"
	"github.com/sjfremen/fred/internal/service/fred"
	"github.com/sjfremen/fred/internal/service/ratelimit"
	"github.com/sjfremen/fred/internal/services/analytics"
	"github.com/sjfremen/fred/internal/usecase"
	pkgch "github.com/sjfremen/fred/pkg/clickhouse"
	"github.com/sjfremen/fred/pkg/config"
	xhttp "github.com/sjfremen/fred/pkg/http"
	pkgkafka "github.com/sjfremen/fred/pkg/kafka"
	applogger "github.com/sjfremen/fred/pkg/logger"
	"github.com/sjfremen/fred/pkg/metrics"
	"github.com/sjfremen/fred/pkg/server"
	"github.com/sjfremen/fred/pkg/util"
)

// ProvideRecorder creates the Prometheus recorder on the default registry.
func ProvideRecorder() *metrics.Recorder {
	return metrics.New()
}

// ProvideMetrics exposes the recorder through the domain interface.
func ProvideMetrics(r *metrics.Recorder) repository.Metrics {
	return r
}

// ProvideSeriesSource creates the FRED client with retry and rate limiting.
func ProvideSeriesSource(cfg *config.Config, m repository.Metrics, l *applogger.Logger) repository.SeriesSource {
	httpClient := xhttp.NewClient(
		xhttp.WithTimeout(cfg.FRED.Timeout),
		xhttp.WithUserAgent(cfg.FRED.UserAgent),
	)
	return fred.New(cfg.FRED.APIKey,
		fred.WithBaseURL(cfg.FRED.BaseURL),
		fred.WithHTTPClient(httpClient),
		fred.WithRetry(cfg.FRED.MaxAttempts, cfg.FRED.BackoffMin, cfg.FRED.BackoffMax),
		fred.WithRateLimit(ratelimit.New(), cfg.FRED.RequestsPerMinute),
		fred.WithMetrics(m),
		fred.WithLogger(l),
	)
}

// ProvideCSVTable creates the CSV table store.
func ProvideCSVTable() *internalrepo.CSVTable {
	return internalrepo.NewCSVTable()
}

// ProvideTableWriter exposes the CSV store as the pipeline's writer.
func ProvideTableWriter(s *internalrepo.CSVTable) repository.TableWriter {
	return s
}

// ProvideTargets builds the enabled table recipes with their output paths.
func ProvideTargets(cfg *config.Config) ([]usecase.Target, error) {
	var out []usecase.Target
	tables := []struct {
		cfg config.TableConfig
		build func(time.Time) *analytics.TableRecipe
	}{
		{cfg.Pipeline.Weekly, analytics.NewWeeklyRecipe},
		{cfg.Pipeline.Monthly, analytics.NewMonthlyRecipe},
	}
	for _, t := range tables {
		if !t.cfg.Enabled {
			continue
		}
		var after time.Time
		if t.cfg.StartAfter != "" {
			var ok bool
			if after, ok = util.ParseTime(t.cfg.StartAfter); !ok {
				return nil, fmt.Errorf("invalid start_after %q", t.cfg.StartAfter)
			}
		}
		out = append(out, usecase.Target{Recipe: t.build(after), Output: t.cfg.Output})
	}
	return out, nil
}

// ProvideMirrors creates the secondary sink selected by mirror.type. The
// cleanup closes the underlying client.
func ProvideMirrors(cfg *config.Config, l *applogger.Logger) ([]repository.TableMirror, func(), error) {
	switch cfg.Mirror.Type {
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := internalrepo.NewClickHouseTableStore(client.DB(), cfg.ClickHouse.Database, cfg.Mirror.BatchSize, l)
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", applogger.Error(err))
			}
		}
		return []repository.TableMirror{store}, cleanup, nil
	case "kafka":
		producer, err := ProvideKafkaProducer(cfg)
		if err != nil {
			return nil, nil, err
		}
		pub := internalrepo.NewKafkaTablePublisher(producer, cfg.Kafka.Topic, cfg.Mirror.BatchSize)
		cleanup := func() {
			if err := pub.Close(); err != nil {
				l.Warn("kafka producer close error", applogger.Error(err))
			}
		}
		return []repository.TableMirror{pub}, cleanup, nil
	default:
		return nil, func() {}, nil
	}
}

// ProvideClickHouseClient creates a ClickHouse client and the indicator schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.IndicatorSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePipeline creates the batch pipeline use case.
func ProvidePipeline(
	cfg *config.Config,
	source repository.SeriesSource,
	writer repository.TableWriter,
	targets []usecase.Target,
	mirrors []repository.TableMirror,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(source, writer, targets, mirrors, m, cfg.FRED.Concurrency, l)
}

// ProvideJob creates the pipeline process.
func ProvideJob(cfg *config.Config, p *usecase.Pipeline, r *metrics.Recorder, l *applogger.Logger) *server.Job {
	return server.NewJob(cfg, p, r, l)
}

// ProvideTableLoader wraps the CSV store with the load-once memo.
func ProvideTableLoader(cfg *config.Config, s *internalrepo.CSVTable, l *applogger.Logger) *internalrepo.TableLoader {
	return internalrepo.NewTableLoader(s, cfg.Dashboard.CacheTTL, l)
}

// ProvideDashboard creates the dashboard use case.
func ProvideDashboard(loader *internalrepo.TableLoader, targets []usecase.Target, l *applogger.Logger) *usecase.Dashboard {
	return usecase.NewDashboard(loader, targets, l)
}

// ProvideDashboardHandler creates the Echo handler.
func ProvideDashboardHandler(cfg *config.Config, dash *usecase.Dashboard, l *applogger.Logger) *api.DashboardEchoHandler {
	return api.NewDashboardEchoHandler(l, dash, cfg.Dashboard.DefaultStart, cfg.Dashboard.RatePerSecond, cfg.Dashboard.Burst)
}

// ProvideHTTPServer creates the Echo server with the dashboard routes.
func ProvideHTTPServer(cfg *config.Config, h *api.DashboardEchoHandler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the dashboard process.
func ProvideApp(cfg *config.Config, srv *xhttp.Server, l *applogger.Logger) *server.App {
	return server.New(cfg, srv, l)
}
