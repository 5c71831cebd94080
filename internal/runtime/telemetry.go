package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/cooolfix/airgate/internal/config"
)

func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, *gatewayMetrics, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.RuntimeName),
			semconv.ServiceNamespace("cooolfix"),
			attribute.String("deployment.environment", cfg.Environment),
			attribute.String("airgate.chat.mode", cfg.Chat.Mode),
			attribute.String("airgate.live.mode", cfg.Live.Mode),
		),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	traceProvider, traceShutdown, err := initTracer(ctx, cfg, res, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	otel.SetTracerProvider(traceProvider)

	meterProvider, metricHandler, err := initMetrics(cfg, res, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	otel.SetMeterProvider(meterProvider)

	gm, err := newGatewayMetrics(meterProvider)
	if err != nil {
		return nil, nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := traceShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	return shutdown, metricHandler, gm, nil
}

// gatewayMetrics counts assistant activity: conversation turns, live voice
// sessions and payment initiations.
type gatewayMetrics struct {
	chatTurns    otelmetric.Int64Counter
	liveSessions otelmetric.Int64Counter
	payments     otelmetric.Int64Counter
}

func newGatewayMetrics(mp *sdkmetric.MeterProvider) (*gatewayMetrics, error) {
	meter := mp.Meter("airgate")

	chatTurns, err := meter.Int64Counter("airgate.chat.turns",
		otelmetric.WithDescription("Conversation turns recorded, by role"))
	if err != nil {
		return nil, err
	}
	liveSessions, err := meter.Int64Counter("airgate.live.sessions",
		otelmetric.WithDescription("Live voice sessions that reached the active state"))
	if err != nil {
		return nil, err
	}
	payments, err := meter.Int64Counter("airgate.payments.initiated",
		otelmetric.WithDescription("Payment transactions initiated, by method"))
	if err != nil {
		return nil, err
	}

	return &gatewayMetrics{
		chatTurns:    chatTurns,
		liveSessions: liveSessions,
		payments:     payments,
	}, nil
}

func (g *gatewayMetrics) turnRecorded(ctx context.Context, role string) {
	if g == nil {
		return
	}
	g.chatTurns.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("role", role)))
}

func (g *gatewayMetrics) liveSessionStarted(ctx context.Context) {
	if g == nil {
		return
	}
	g.liveSessions.Add(ctx, 1)
}

func (g *gatewayMetrics) paymentInitiated(ctx context.Context, method string) {
	if g == nil {
		return
	}
	g.payments.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("method", method)))
}

func initTracer(ctx context.Context, cfg config.Config, res *resource.Resource, logger *slog.Logger) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Telemetry.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		logger.Info("telemetry initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
		return tp, tp.Shutdown, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	logger.Info("telemetry initialized", slog.String("exporter", "stdout"))
	return tp, tp.Shutdown, nil
}

func initMetrics(cfg config.Config, res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		meter := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return meter, nil, nil
	}
	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	return meter, promhttp.Handler(), nil
}
