package main

import (
	"context"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

type exportedRecord struct {
	body     string
	severity otellog.Severity
	attrs    map[string]otellog.Value
}

type memoryExporter struct {
	mu      sync.Mutex
	records []exportedRecord
}

func (e *memoryExporter) Export(ctx context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		rec := exportedRecord{
			body:     r.Body().AsString(),
			severity: r.Severity(),
			attrs:    map[string]otellog.Value{},
		}
		r.WalkAttributes(func(kv otellog.KeyValue) bool {
			rec.attrs[kv.Key] = kv.Value
			return true
		})
		e.records = append(e.records, rec)
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func newTestObserver(t *testing.T, cfg *Config) (*OTelLogObserver, *memoryExporter) {
	t.Helper()
	exp := &memoryExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return NewOTelLogObserver(provider.Logger("test"), cfg), exp
}

func TestOTelLogObserver_Records(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Name = "TestServer"
	obs, exp := newTestObserver(t, &cfg)

	obs.ObserveEvent(relay.PlayerJoined{Name: "Alice", Roster: []string{"Alice", "Bob"}}, "Alice joined.")
	obs.ObserveEvent(relay.ChatMessage{Name: "Bob", Text: "hi"}, "Bob: hi")
	obs.ObserveEvent(relay.PlayerDied{Name: "Bob", CauseText: "Bob fell to their death."}, "Bob fell to their death.")

	require.Len(t, exp.records, 3)

	join := exp.records[0]
	assert.Equal(t, "join", join.body)
	assert.Equal(t, otellog.SeverityInfo, join.severity)
	assert.Equal(t, "Alice", join.attrs["player"].AsString())
	assert.Equal(t, "TestServer", join.attrs["server"].AsString())
	assert.Equal(t, int64(2), join.attrs["players"].AsInt64())

	assert.Equal(t, "chat", exp.records[1].body)
	assert.Equal(t, "hi", exp.records[1].attrs["text"].AsString())
	assert.Equal(t, "Bob: hi", exp.records[1].attrs["message"].AsString())

	assert.Equal(t, "Bob fell to their death.", exp.records[2].attrs["cause"].AsString())
}

func TestOTelLogObserver_Filter(t *testing.T) {
	cfg := defaultConfig()
	cfg.Loki.Events = []string{"death"}
	obs, exp := newTestObserver(t, &cfg)

	obs.ObserveEvent(relay.ChatMessage{Name: "Bob", Text: "hi"}, "Bob: hi")
	obs.ObserveEvent(relay.PlayerLeft{Name: "Bob"}, "Bob left.")
	obs.ObserveEvent(relay.PlayerDied{Name: "Bob", CauseText: "Bob was slain."}, "Bob was slain.")

	require.Len(t, exp.records, 1)
	assert.Equal(t, "death", exp.records[0].body)
}
