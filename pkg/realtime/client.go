package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"chatsync/pkg/backend/types"
	"chatsync/pkg/constants"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Handler receives change events for a subscribed channel. Handlers are
// invoked from the subscription's read loop and should return quickly.
type Handler func(types.ChangeEvent)

// Subscriber opens change-event subscriptions keyed by channel id.
type Subscriber interface {
	Subscribe(ctx context.Context, channelID string, handler Handler) (Subscription, error)
}

// Subscription is a live change-event stream. Close tears the read loop
// down synchronously; no handler fires after Close returns.
type Subscription interface {
	Close() error
}

// WSClient subscribes to the backend's websocket change feed.
type WSClient struct {
	wsURL     string
	authToken string
	logger    *logrus.Logger
}

func NewClient(wsURL, authToken string, logger *logrus.Logger) *WSClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &WSClient{
		wsURL:     wsURL,
		authToken: authToken,
		logger:    logger,
	}
}

type wsSubscription struct {
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscription) Close() error {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		// Unblocks a pending Read immediately instead of waiting for the
		// context deadline to propagate.
		_ = s.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *wsSubscription) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Subscribe dials the change feed for one channel and delivers events to
// handler until the subscription is closed. The read loop reconnects with
// exponential backoff on transient stream failures.
func (c *WSClient) Subscribe(ctx context.Context, channelID string, handler Handler) (Subscription, error) {
	subURL, err := c.subscriptionURL(channelID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	conn, err := c.dial(runCtx, subURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change-event stream: %w", err)
	}

	sub := &wsSubscription{cancel: cancel, wg: &sync.WaitGroup{}}
	sub.setConn(conn)

	sub.wg.Add(1)
	go c.readLoop(runCtx, subURL, channelID, conn, sub, handler)

	c.logger.WithField("channelId", channelID).Info("Subscribed to change-event stream")
	return sub, nil
}

func (c *WSClient) subscriptionURL(channelID string) (string, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime URL: %w", err)
	}
	q := u.Query()
	q.Set("channel", channelID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *WSClient) dial(ctx context.Context, subURL string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, constants.DefaultWSHandshakeTimeoutSec*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if c.authToken != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.authToken}}
	}

	conn, _, err := websocket.Dial(dialCtx, subURL, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *WSClient) readLoop(ctx context.Context, subURL, channelID string, conn *websocket.Conn, sub *wsSubscription, handler Handler) {
	defer sub.wg.Done()
	defer func() {
		sub.mu.Lock()
		if sub.conn != nil {
			_ = sub.conn.Close(websocket.StatusNormalClosure, "done")
		}
		sub.mu.Unlock()
	}()

	backoff := constants.DefaultReconnectInitialMs * time.Millisecond
	maxBackoff := constants.DefaultReconnectMaxSec * time.Second

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.logger.WithFields(logrus.Fields{
				"channelId": channelID,
				"error":     err,
			}).Warn("Change-event stream interrupted, reconnecting")

			conn = c.reconnect(ctx, subURL, sub, &backoff, maxBackoff)
			if conn == nil {
				return
			}
			continue
		}

		backoff = constants.DefaultReconnectInitialMs * time.Millisecond

		var event types.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.WithError(err).Warn("Discarding malformed change event")
			continue
		}
		if event.ChannelID != "" && event.ChannelID != channelID {
			continue
		}
		handler(event)
	}
}

// reconnect retries the dial until it succeeds or the subscription context
// is cancelled, doubling the backoff up to the configured ceiling.
func (c *WSClient) reconnect(ctx context.Context, subURL string, sub *wsSubscription, backoff *time.Duration, maxBackoff time.Duration) *websocket.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*backoff):
		}

		conn, err := c.dial(ctx, subURL)
		if err == nil {
			sub.setConn(conn)
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}

		*backoff *= 2
		if *backoff > maxBackoff {
			*backoff = maxBackoff
		}
	}
}
