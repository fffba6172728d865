package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/luxbridge/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with luxbridge-specific functionality.
//
// It provides connection management, message publishing, subscription
// handling, and reporting of connect results on every (re)connect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client      pahomqtt.Client
	options     *pahomqtt.ClientOptions
	cfg         config.MQTTConfig
	statusTopic string

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected  bool
	everOnline bool
	connMu     sync.RWMutex

	onConnect    func(result ConnectResult)
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	retryInterval time.Duration
	startOnce     sync.Once
	stopOnce      sync.Once
	stop          chan struct{}
	retryWG       sync.WaitGroup
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked sequentially in arrival order. They must not
// wait on publish tokens.
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// New builds a client for the broker in cfg without connecting.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures the LWT on statusTopic (skipped when empty)
//  3. Enables library auto-reconnect for connections that drop
//
// Register callbacks with SetOnConnect and SetLogger, then call Start.
func New(cfg config.MQTTConfig, statusTopic string) *Client {
	opts := buildClientOptions(cfg)
	configureLWT(opts, statusTopic, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		statusTopic:   statusTopic,
		subscriptions: make(map[string]subscription),
		retryInterval: cfg.GetRetryInterval(),
		stop:          make(chan struct{}),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Start makes the first connection attempt and waits for its result.
//
// A refused or failed attempt is reported through the OnConnect callback
// and is not fatal: attempts continue in the background every
// mqtt.reconnect.retry_interval until the broker accepts, ctx is
// cancelled or Close is called. Once connected, drops are handled by the
// library's auto-reconnect.
//
// Returns:
//   - error: ErrConnectionFailed for the first attempt, for logging only.
//     ResultFromError recovers the return code.
func (c *Client) Start(ctx context.Context) error {
	var err error
	c.startOnce.Do(func() {
		if err = c.connect(); err == nil {
			return
		}
		c.retryWG.Add(1)
		go c.retryConnect(ctx)
	})
	return err
}

// connect makes one connection attempt. Failures are reported to the
// OnConnect callback; success is reported by handleConnect.
func (c *Client) connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		err := fmt.Errorf("%w: %w after %v", ErrConnectionFailed, ErrTimeout, defaultConnectTimeout)
		c.notifyConnect(ConnectResult{Code: packets.ErrNetworkError, Err: err})
		return err
	}
	if err := token.Error(); err != nil {
		result := ResultFromError(err)
		c.notifyConnect(result)
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, result, err)
	}

	// The OnConnectHandler runs asynchronously and may not have fired yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return nil
}

// retryConnect repeats connect until it succeeds or the client stops.
func (c *Client) retryConnect(ctx context.Context) {
	defer c.retryWG.Done()

	ticker := time.NewTicker(c.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
		}
		if c.connect() == nil {
			return
		}
	}
}

// handleConnect is called by paho each time a connection is established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	reconnect := c.everOnline
	c.everOnline = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishOnline()

	c.notifyConnect(ConnectResult{Reconnect: reconnect})
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) notifyConnect(result ConnectResult) {
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(result)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnline writes the retained online status. The token is not
// awaited so the connect handler stays non-blocking.
func (c *Client) publishOnline() {
	if c.statusTopic == "" {
		return
	}
	c.client.Publish(c.statusTopic, byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a graceful offline status (distinct from the LWT) and then
// disconnects with a quiesce period for pending operations.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.stopOnce.Do(func() { close(c.stop) })
	c.retryWG.Wait()

	if c.statusTopic != "" && c.IsConnected() {
		payload := []byte(buildOfflinePayload(c.cfg.Broker.ClientID))
		if err := c.Publish(c.statusTopic, payload, byte(c.cfg.QoS), true); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT offline status not published", "topic", c.statusTopic, "error", err)
			}
		}
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked with the result of each connection
// attempt the client makes until it is first accepted, and with every
// successful reconnect after that.
func (c *Client) SetOnConnect(callback func(result ConnectResult)) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors, panics and async publish failures.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
