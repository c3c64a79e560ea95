package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Deliverer sends one outbound message and returns the raw response body.
type Deliverer interface {
	Deliver(ctx context.Context, message string) (string, error)
}

// Configurable is implemented by deliverers that can be left without
// credentials. The relay skips delivery while Configured reports false.
type Configurable interface {
	Configured() bool
}

// DeliveryError is a transport level failure: the HTTP exchange did not
// complete. Error responses from the service are not DeliveryErrors.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// WebhookClient posts form encoded messages to webhook URLs.
type WebhookClient struct {
	client *http.Client
	// Timeout bounds one exchange. Zero leaves the transport default.
	Timeout time.Duration
}

// NewWebhookClient returns a client using hc, or http.DefaultClient when hc is nil.
func NewWebhookClient(hc *http.Client) *WebhookClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &WebhookClient{client: hc}
}

// Send posts message as the "content" form field to webhookURL and waits for
// the response. An empty webhookURL is a no-op. Any completed exchange counts
// as delivered regardless of status; the body is returned.
func (c *WebhookClient) Send(ctx context.Context, webhookURL, message string) (string, error) {
	if webhookURL == "" {
		return "", nil
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	form := url.Values{"content": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportError(webhookURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", transportError(webhookURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(webhookURL, fmt.Errorf("read body: %w", err))
	}
	return string(data), nil
}

// Webhook binds a WebhookClient to one configured URL.
type Webhook struct {
	Client *WebhookClient
	URL    string
}

func (w *Webhook) Configured() bool { return w.URL != "" }

func (w *Webhook) Deliver(ctx context.Context, message string) (string, error) {
	return w.Client.Send(ctx, w.URL, message)
}

// BotClient posts messages to a channel through the bot API.
type BotClient struct {
	session   *discordgo.Session
	channelID string
}

// NewBotClient builds a BotClient. The token is used as the Authorization
// header value as is, so it should carry its "Bot " prefix. An empty token
// or channel yields a client whose deliveries are skipped.
func NewBotClient(cfg BotConfig) (*BotClient, error) {
	if !cfg.Configured() {
		return &BotClient{}, nil
	}
	session, err := discordgo.New(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discordgo session: %w", err)
	}
	// One attempt per message.
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0
	return &BotClient{session: session, channelID: cfg.ChannelID}, nil
}

func (b *BotClient) Configured() bool { return b.session != nil }

func (b *BotClient) Deliver(ctx context.Context, message string) (string, error) {
	if b.session == nil {
		return "", nil
	}
	msg, err := b.session.ChannelMessageSend(b.channelID, message, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) {
			// The exchange completed; the service answered with an error.
			return string(restErr.ResponseBody), nil
		}
		return "", &DeliveryError{Target: "channel " + b.channelID, Err: err}
	}
	return msg.ID, nil
}

// Close releases the bot session.
func (b *BotClient) Close() error {
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

func transportError(webhookURL string, err error) *DeliveryError {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = redact(uerr.URL)
	}
	return &DeliveryError{Target: redact(webhookURL), Err: err}
}

// redact strips the token path segment from webhook URLs for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "webhook"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 1 {
		parts[len(parts)-1] = "redacted"
	}
	u.Path = "/" + strings.Join(parts, "/")
	u.RawQuery = ""
	return u.String()
}
