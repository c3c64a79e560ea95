package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg.Log)

	// Delivery
	deliverer, closeDeliverer, err := newDeliverer(&cfg, logger)
	if err != nil {
		logger.Fatalf("delivery: %v", err)
	}
	defer closeDeliverer()

	opts := []relay.Option{
		relay.WithLogger(logger.WithField("component", "relay")),
		relay.WithLegacyDeathText(cfg.Death.LegacyText),
		relay.WithFormatter(&relay.Formatter{
			ServerName: cfg.Server.Name,
			Templates:  cfg.Templates,
		}),
	}

	// OTel exporters
	if cfg.OTel.Enabled {
		res, err := resource.Merge(resource.Default(),
			resource.NewSchemaless(attribute.String("service.name", cfg.OTel.ServiceName)))
		if err != nil {
			logger.Fatalf("otel resource: %v", err)
		}

		if cfg.Metrics.Enabled {
			metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure())
			if err != nil {
				logger.Fatalf("metric exporter: %v", err)
			}
			meterProvider := sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.Metrics.Interval))),
			)
			defer meterProvider.Shutdown(context.Background())
			opts = append(opts, relay.WithMeterProvider(meterProvider))
		}

		logExporter, err := otlploggrpc.New(ctx, otlploggrpc.WithInsecure())
		if err != nil {
			logger.Fatalf("log exporter: %v", err)
		}
		loggerProvider := sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		)
		defer loggerProvider.Shutdown(context.Background())
		opts = append(opts, relay.WithObserver(NewOTelLogObserver(loggerProvider.Logger(cfg.OTel.ServiceName), &cfg)))
	}

	// Host + relay
	host := NewConsoleHost(cfg.Server.Name, logger.WithField("component", "console"))
	rl, err := relay.New(host, deliverer, opts...)
	if err != nil {
		logger.Fatalf("relay: %v", err)
	}

	tailer := NewLogTailer(newLineSource(&cfg), logger.WithField("component", "tailer"))
	tailer.Subscribe(host)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		rl.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tailer.Run(ctx)
	}()

	if cfg.RCON.Enabled {
		rconPool := NewRCONPool(cfg.RCON.Host, cfg.RCON.Port, cfg.RCON.Password)
		defer rconPool.Close()

		roster := NewRosterSync(rconPool, host, cfg.RCON.Command, cfg.RCON.Interval, logger.WithField("component", "roster"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			roster.Run(ctx)
		}()
	}

	logger.WithFields(logrus.Fields{
		"server":   cfg.Server.Name,
		"delivery": cfg.Delivery.Mode,
		"source":   cfg.Source.Type,
		"rcon":     cfg.RCON.Enabled,
		"otel":     cfg.OTel.Enabled,
	}).Info("tshock-discord-relay started")

	wg.Wait()
	logger.Info("shutting down")
}

// newDeliverer builds the delivery client for the configured mode. Missing
// credential files are created with placeholders and leave the relay
// disabled; any other file error is fatal.
func newDeliverer(cfg *Config, logger logrus.FieldLogger) (relay.Deliverer, func(), error) {
	switch cfg.Delivery.Mode {
	case "bot":
		tokenPath, channelPath := cfg.botPaths()
		botCfg, err := relay.LoadBotConfig(tokenPath, channelPath)
		if err != nil {
			return nil, nil, err
		}
		if !botCfg.Configured() {
			logger.Warnf("discord bot not configured, edit %s and %s and restart", tokenPath, channelPath)
		}
		bot, err := relay.NewBotClient(botCfg)
		if err != nil {
			return nil, nil, err
		}
		return bot, func() { bot.Close() }, nil

	default:
		path := cfg.webhookPath()
		webhookCfg, err := relay.LoadWebhookConfig(path)
		if err != nil {
			return nil, nil, err
		}
		if !webhookCfg.Configured() {
			logger.Warnf("discord webhook not configured, edit %s and restart", path)
		}
		client := relay.NewWebhookClient(&http.Client{})
		client.Timeout = cfg.Delivery.Timeout
		return &relay.Webhook{Client: client, URL: webhookCfg.URL}, func() {}, nil
	}
}

func newLineSource(cfg *Config) LineSource {
	if cfg.Source.Type == "kubernetes" {
		return NewPodLogSource(NewK8sClient(cfg.Source.Namespace), cfg.Source.PodLabel, cfg.Source.Container)
	}
	return NewFileSource(cfg.Source.File)
}
