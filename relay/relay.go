package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
)

// Relay turns host events into outbound notifications. Every handler runs
// synchronously on the host's dispatching goroutine and returns only after
// the delivery attempt has concluded. Nothing escapes a handler: delivery
// failures and panics are logged and dropped.
type Relay struct {
	host      Host
	deliverer Deliverer
	formatter *Formatter
	observers []Observer
	log       logrus.FieldLogger
	metrics   *metrics

	legacyDeathText bool

	mu  sync.Mutex
	ctx context.Context
}

// Option configures a Relay.
type Option func(*options)

type options struct {
	formatter       *Formatter
	observers       []Observer
	logger          logrus.FieldLogger
	meterProvider   metric.MeterProvider
	legacyDeathText bool
}

// WithFormatter replaces the default formatter built from the host's server name.
func WithFormatter(f *Formatter) Option {
	return func(o *options) { o.formatter = f }
}

// WithObserver adds an observer notified for every formatted event.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithLegacyDeathText skips packet decoding and always uses the legacy
// death phrasing.
func WithLegacyDeathText(enabled bool) Option {
	return func(o *options) { o.legacyDeathText = enabled }
}

// New builds a Relay. It does not subscribe to the host until Start.
func New(host Host, deliverer Deliverer, opts ...Option) (*Relay, error) {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.formatter == nil {
		o.formatter = NewFormatter(host.ServerName())
	}
	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("relay metrics: %w", err)
	}
	return &Relay{
		host:            host,
		deliverer:       deliverer,
		formatter:       o.formatter,
		observers:       o.observers,
		log:             o.logger,
		metrics:         m,
		legacyDeathText: o.legacyDeathText,
		ctx:             context.Background(),
	}, nil
}

// Start registers the relay's handlers with the host. Deliveries use ctx.
// The returned stop func deregisters every handler and may be called more
// than once.
func (r *Relay) Start(ctx context.Context) (stop func()) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	hooks := r.host.Hooks()
	deregister := []func(){
		hooks.Join.Register(r.OnJoin),
		hooks.Leave.Register(r.OnLeave),
		hooks.Chat.Register(r.OnChat),
		hooks.GetData.Register(r.OnGetData),
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, fn := range deregister {
				fn()
			}
		})
	}
}

// Run starts the relay and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	stop := r.Start(ctx)
	defer stop()
	<-ctx.Done()
}

// OnJoin handles a player connecting.
func (r *Relay) OnJoin(args JoinArgs) {
	defer r.guard("join")

	name, ok := r.host.Player(args.Who)
	if !ok {
		r.drop("join", args.Who)
		return
	}
	r.relay(PlayerJoined{Name: name, Roster: JoinRoster(r.host.Players(), name)})
}

// OnLeave handles a player disconnecting. The host still lists the player
// while the handler runs.
func (r *Relay) OnLeave(args LeaveArgs) {
	defer r.guard("leave")

	name, ok := r.host.Player(args.Who)
	if !ok {
		r.drop("leave", args.Who)
		return
	}
	r.relay(PlayerLeft{Name: name, Roster: LeaveRoster(r.host.Players(), name)})
}

// OnChat handles player chat.
func (r *Relay) OnChat(args ChatArgs) {
	defer r.guard("chat")

	name, ok := r.host.Player(args.Who)
	if !ok {
		r.drop("chat", args.Who)
		return
	}
	r.relay(ChatMessage{Name: name, Text: args.RawText})
}

// OnGetData handles raw packets; only player deaths are relayed.
func (r *Relay) OnGetData(args GetDataArgs) {
	if args.MsgID != PacketPlayerDeathV2 {
		return
	}
	defer r.guard("death")

	name, ok := r.host.Player(args.Who)
	if !ok {
		r.drop("death", args.Who)
		return
	}
	r.relay(PlayerDied{Name: name, CauseText: r.deathText(name, args)})
}

func (r *Relay) deathText(name string, args GetDataArgs) string {
	if r.legacyDeathText {
		return LegacyDeathText(name)
	}
	death, err := DecodePlayerDeath(args.MsgID, args.Data)
	if err != nil {
		r.log.WithError(err).WithField("player", name).Debug("death reason undecodable, using legacy text")
		return LegacyDeathText(name)
	}
	if text := death.Reason.DeathText(name, r.host.Player); text != "" {
		return text
	}
	return LegacyDeathText(name)
}

func (r *Relay) relay(e GameEvent) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	r.metrics.event(ctx, e.Type())

	msg, err := r.formatter.Format(e)
	if err != nil {
		r.log.WithError(err).WithField("event", e.Type()).Warn("format event")
		return
	}
	for _, obs := range r.observers {
		obs.ObserveEvent(e, msg)
	}

	if c, ok := r.deliverer.(Configurable); ok && !c.Configured() {
		r.metrics.delivery(ctx, e.Type(), resultSkipped, 0)
		r.log.WithField("event", e.Type()).Debug("delivery not configured, skipping")
		return
	}

	start := time.Now()
	_, err = r.deliverer.Deliver(ctx, msg)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.delivery(ctx, e.Type(), resultFailed, elapsed)
		r.log.WithError(err).WithFields(logrus.Fields{
			"event":  e.Type(),
			"player": e.Player(),
		}).Warn("delivery failed")
		return
	}
	r.metrics.delivery(ctx, e.Type(), resultDelivered, elapsed)
	r.log.WithFields(logrus.Fields{
		"event":    e.Type(),
		"player":   e.Player(),
		"duration": elapsed,
	}).Debug("delivered")
}

func (r *Relay) drop(eventType string, who int) {
	r.metrics.delivery(context.Background(), eventType, resultDropped, 0)
	r.log.WithFields(logrus.Fields{"event": eventType, "who": who}).Debug("dropping event for invalid player slot")
}

func (r *Relay) guard(eventType string) {
	if v := recover(); v != nil {
		r.log.WithField("event", eventType).Errorf("relay handler panic: %v", v)
	}
}
