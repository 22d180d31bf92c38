package pose

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ObservationHandler is called when an observation payload arrives for a
// rig. rawPayload is provided so callers can persist payloads that failed
// to decode.
type ObservationHandler func(rigID string, rawPayload []byte, set *ObservationSet, err error)

// Client manages the MQTT connection and the per-rig observation topic
// subscriptions.
type Client struct {
	client      mqtt.Client
	config      *Config
	handler     ObservationHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT initializes the MQTT client with the provided configuration.
// If neither the MQTT_BROKER env var nor the config define a broker, MQTT
// is disabled and this returns nil.
func InitMQTT(config *Config, handler ObservationHandler) (*Client, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Rigs) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no rig configuration provided")
	}

	client := &Client{
		config:  config,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "riglocate"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // preserve subscriptions on reconnect
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff.
func (c *Client) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every configured rig observation topic.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to rig topics...")
	c.setConnected(true)

	for _, rig := range c.config.Rigs {
		if rig.Topic == "" {
			log.Printf("Warning: rig %s has no topic configured", rig.ID)
			continue
		}

		log.Printf("Subscribing to %s for rig %s", rig.Topic, rig.ID)
		token := client.Subscribe(rig.Topic, 0, c.createObservationHandler(rig.ID))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", rig.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", rig.Topic)
		}
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *Client) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createObservationHandler creates a handler for a specific rig's topic.
func (c *Client) createObservationHandler(rigID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received observations for %s (topic: %s, size: %d bytes)",
			rigID, msg.Topic(), len(payload))

		set, err := DecodeObservations(payload)
		if err != nil {
			log.Printf("Error decoding observations for %s: %v", rigID, err)
			if c.handler != nil {
				c.handler(rigID, payload, nil, err)
			}
			return
		}

		if c.handler != nil {
			c.handler(rigID, payload, set, nil)
		}
	}
}

// IsConnected returns true if the MQTT client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing.
func (c *Client) GetClient() mqtt.Client {
	return c.client
}

// newClientWithMock creates a Client with a provided mqtt.Client, for tests.
func newClientWithMock(client mqtt.Client, config *Config, handler ObservationHandler) *Client {
	return &Client{
		client:  client,
		config:  config,
		handler: handler,
	}
}
