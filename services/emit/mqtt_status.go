package emit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"drive-logger/utils"
)

var ErrNotConnected = errors.New("mqtt not connected")

// StateMessage is published on <topic>/state for every flow transition.
type StateMessage struct {
	RunID  string `json:"run_id"`
	State  string `json:"state"`
	Source string `json:"source,omitempty"`
	At     string `json:"at"`
}

// StatsMessage is published on <topic>/stats on the stats ticker.
type StatsMessage struct {
	RunID     string `json:"run_id"`
	Captured  uint64 `json:"captured"`
	Rows      uint64 `json:"rows"`
	Images    uint64 `json:"images"`
	Discarded uint64 `json:"discarded"`
}

// StatePayload encodes a state message with an RFC 3339 timestamp.
func StatePayload(runID, state, source string, at time.Time) ([]byte, error) {
	return json.Marshal(StateMessage{
		RunID:  runID,
		State:  state,
		Source: source,
		At:     at.UTC().Format(time.RFC3339Nano),
	})
}

// BrokerURL adds the tcp:// scheme when broker is a bare host:port.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// MQTTPublisher reports capture status to an MQTT broker. Failures are
// counted and returned; callers log them and carry on.
type MQTTPublisher struct {
	cfg    utils.MQTTConfig
	runID  string
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

func NewMQTTPublisher(cfg utils.MQTTConfig, runID string) *MQTTPublisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "drive-logger-" + runID
	}
	return &MQTTPublisher{cfg: cfg, runID: runID}
}

// Connect dials the broker, giving up after 5s or when ctx ends.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		utils.L().Info("mqtt connected (broker=%s, client_id=%s)", p.cfg.Broker, p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		utils.L().Warn("mqtt connection lost, reconnecting: %v", err)
	}

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()

	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connect %s: timeout", p.cfg.Broker)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.cfg.Broker, err)
	}
	p.setConnected(true)
	return nil
}

// PublishState reports a flow transition. Retained so late subscribers see
// the current state.
func (p *MQTTPublisher) PublishState(state, source string) error {
	payload, err := StatePayload(p.runID, state, source, time.Now())
	if err != nil {
		return err
	}
	return p.publish(p.cfg.Topic+"/state", true, payload)
}

// PublishStats reports pipeline counters.
func (p *MQTTPublisher) PublishStats(m StatsMessage) error {
	m.RunID = p.runID
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.publish(p.cfg.Topic+"/stats", false, payload)
}

func (p *MQTTPublisher) publish(topic string, retained bool, payload []byte) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.countError()
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	utils.L().Debug("mqtt published %s (%d bytes)", topic, len(payload))
	return nil
}

// Disconnect closes the connection with a 250ms grace period.
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		utils.L().Info("mqtt disconnected (published=%d, errors=%d)", p.Published(), p.Errors())
	}
	p.setConnected(false)
}

func (p *MQTTPublisher) Published() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published
}

func (p *MQTTPublisher) Errors() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.errors
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
