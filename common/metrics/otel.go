package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/ceramicnetwork/go-callpush/common"
	"github.com/ceramicnetwork/go-callpush/models"
)

var _ models.MetricService = &OtlMetricService{}

const defaultExportInterval = 30 * time.Second

type OtlMetricService struct {
	meterProvider *sdk.MeterProvider
	meter         metric.Meter
	logger        models.Logger
	mu            sync.Mutex
	counters      map[models.MetricName]metric.Int64Counter
	histograms    map[models.MetricName]metric.Int64Histogram
}

// NewMetricService exports over OTLP/HTTP when a collector endpoint is configured and to stdout otherwise.
func NewMetricService(ctx context.Context, logger models.Logger) (*OtlMetricService, error) {
	var exporter sdk.Exporter
	var err error
	if len(os.Getenv(common.Env_MetricsEndpoint)) > 0 {
		// The exporter reads the collector endpoint from the environment
		exporter, err = otlpmetrichttp.New(ctx)
	} else {
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, err
	}
	return newMetricService(sdk.NewPeriodicReader(exporter, sdk.WithInterval(defaultExportInterval)), logger), nil
}

func newMetricService(reader sdk.Reader, logger models.Logger) *OtlMetricService {
	meterProvider := sdk.NewMeterProvider(sdk.WithReader(reader))
	return &OtlMetricService{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(models.MetricsCallerName),
		logger:        logger,
		counters:      make(map[models.MetricName]metric.Int64Counter),
		histograms:    make(map[models.MetricName]metric.Int64Histogram),
	}
}

func (o *OtlMetricService) Count(ctx context.Context, name models.MetricName, val int) error {
	o.mu.Lock()
	counter, found := o.counters[name]
	if !found {
		var err error
		if counter, err = o.meter.Int64Counter(string(name)); err != nil {
			o.mu.Unlock()
			return err
		}
		o.counters[name] = counter
	}
	o.mu.Unlock()

	counter.Add(ctx, int64(val))
	return nil
}

func (o *OtlMetricService) Distribution(ctx context.Context, name models.MetricName, val int) error {
	o.mu.Lock()
	histogram, found := o.histograms[name]
	if !found {
		var err error
		if histogram, err = o.meter.Int64Histogram(string(name)); err != nil {
			o.mu.Unlock()
			return err
		}
		o.histograms[name] = histogram
	}
	o.mu.Unlock()

	histogram.Record(ctx, int64(val))
	return nil
}

func (o *OtlMetricService) Shutdown(ctx context.Context) {
	if err := o.meterProvider.Shutdown(ctx); err != nil {
		o.logger.Errorf("metrics: error shutting down meter provider: %v", err)
	}
}
