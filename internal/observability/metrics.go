package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/storekit/storefront-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	authLoginCounter      metric.Int64Counter
	authRefreshCounter    metric.Int64Counter
	authRegisterCounter   metric.Int64Counter
	authLogoutCounter     metric.Int64Counter
	tokenValidationCtr    metric.Int64Counter
	repositoryOpCounter   metric.Int64Counter
	tokenSweepRemovedCtr  metric.Int64Counter
	securityEventsCounter metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("storefront-backend")
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	refreshCounter, err := meter.Int64Counter("auth.refresh.attempts")
	if err != nil {
		return nil, err
	}
	registerCounter, err := meter.Int64Counter("auth.register.attempts")
	if err != nil {
		return nil, err
	}
	logoutCounter, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return nil, err
	}
	tokenValidation, err := meter.Int64Counter("auth.access_token.validations")
	if err != nil {
		return nil, err
	}
	repoOps, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	sweepRemoved, err := meter.Int64Counter("auth.refresh_token.sweep_removed")
	if err != nil {
		return nil, err
	}
	securityEvents, err := meter.Int64Counter("auth.security.events")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authLoginCounter:      loginCounter,
		authRefreshCounter:    refreshCounter,
		authRegisterCounter:   registerCounter,
		authLogoutCounter:     logoutCounter,
		tokenValidationCtr:    tokenValidation,
		repositoryOpCounter:   repoOps,
		tokenSweepRemovedCtr:  sweepRemoved,
		securityEventsCounter: securityEvents,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthRefresh(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthRegister(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authRegisterCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordAccessTokenValidation counts request-gate outcomes. Result is one of
// valid, missing, expired, malformed, tampered, subject_vanished.
func RecordAccessTokenValidation(ctx context.Context, result string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidationCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func RecordRepositoryOperation(ctx context.Context, entity, op, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func RecordTokenSweep(removed int64) {
	m := current()
	if m == nil {
		return
	}
	m.tokenSweepRemovedCtr.Add(context.Background(), removed)
}

func RecordSecurityEvent(event string) {
	m := current()
	if m == nil {
		return
	}
	m.securityEventsCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
}
