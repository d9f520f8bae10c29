package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fabworks/cell-core/internal/infrastructure/config"
)

// Connection management constants.
const (
	// connectTimeout is the maximum time to wait for the initial connection.
	connectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds how long a publish may block.
	defaultPublishTimeout = 5 * time.Second

	// maxReconnectInterval caps the exponential backoff between reconnects.
	maxReconnectInterval = 60 * time.Second

	// maxQoS is the highest valid MQTT QoS level.
	maxQoS = 2
)

// Client wraps paho.mqtt.golang with Cell Core-specific functionality.
//
// The cell only publishes (telemetry and retained state); there is no
// subscription surface. Reconnection is automatic with exponential
// backoff, and a Last Will marks the cell offline if the link drops.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It configures a Last Will and Testament on the cell status topic,
// enables auto-reconnect with exponential backoff, and publishes an
// online status message once connected.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial connection fails within the timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetCleanSession(true)
	opts.SetWill(Topics{}.Status(cfg.ClientID), `{"status":"offline"}`, byte(cfg.QoS), true)

	c := &Client{cfg: cfg}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	return c, nil
}

// handleConnect updates connection state and publishes online status.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	// Best effort: a failed status publish does not invalidate the connection.
	_ = c.Publish(Topics{}.Status(c.cfg.ClientID), []byte(`{"status":"online"}`), byte(c.cfg.QoS), true)

	c.callbackMu.RLock()
	cb := c.onConnect
	c.callbackMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// handleDisconnect updates connection state and invokes the disconnect callback.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	cb := c.onDisconnect
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// SetOnConnect registers a callback invoked on every successful (re)connection.
func (c *Client) SetOnConnect(cb func()) {
	c.callbackMu.Lock()
	c.onConnect = cb
	c.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection drops.
func (c *Client) SetOnDisconnect(cb func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = cb
	c.callbackMu.Unlock()
}

// IsConnected reports whether the client currently has a broker connection.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// Close publishes offline status and disconnects from the broker.
func (c *Client) Close() error {
	if c.IsConnected() {
		_ = c.Publish(Topics{}.Status(c.cfg.ClientID), []byte(`{"status":"offline"}`), byte(c.cfg.QoS), true)
	}

	const disconnectQuiesceMs = 250
	c.client.Disconnect(disconnectQuiesceMs)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	return nil
}
