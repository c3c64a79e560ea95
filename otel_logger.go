package main

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

// OTelLogObserver exports relayed events as structured OTel log records (→ Loki).
type OTelLogObserver struct {
	logger otellog.Logger
	cfg    *Config
}

func NewOTelLogObserver(logger otellog.Logger, cfg *Config) *OTelLogObserver {
	return &OTelLogObserver{logger: logger, cfg: cfg}
}

func (o *OTelLogObserver) ObserveEvent(event relay.GameEvent, message string) {
	if !o.cfg.lokiEventAllowed(event.Type()) {
		return
	}

	attrs := []otellog.KeyValue{
		otellog.String("player", event.Player()),
		otellog.String("message", message),
		otellog.String("server", o.cfg.Server.Name),
	}
	switch e := event.(type) {
	case relay.PlayerJoined:
		attrs = append(attrs, otellog.Int("players", len(e.Roster)))
	case relay.PlayerLeft:
		attrs = append(attrs, otellog.Int("players", len(e.Roster)))
	case relay.ChatMessage:
		attrs = append(attrs, otellog.String("text", e.Text))
	case relay.PlayerDied:
		attrs = append(attrs, otellog.String("cause", e.CauseText))
	}

	emitEvent(o.logger, event.Type(), attrs...)
}

func emitEvent(logger otellog.Logger, event string, attrs ...otellog.KeyValue) {
	var r otellog.Record
	r.SetTimestamp(time.Now())
	r.SetSeverity(otellog.SeverityInfo)
	r.SetBody(otellog.StringValue(event))
	r.AddAttributes(attrs...)
	logger.Emit(context.Background(), r)
}
