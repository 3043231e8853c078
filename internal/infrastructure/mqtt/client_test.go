package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lattice-home/lattice-agent/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lattice-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("dev-42")

	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name:     "CommandInbox",
			builder:  topics.CommandInbox,
			expected: "lattice/dev-42/commands/inbox",
		},
		{
			name:     "CommandAck",
			builder:  topics.CommandAck,
			expected: "lattice/dev-42/commands/ack",
		},
		{
			name:     "CommandStatus",
			builder:  topics.CommandStatus,
			expected: "lattice/dev-42/commands/status",
		},
		{
			name:     "Definitions",
			builder:  topics.Definitions,
			expected: "lattice/dev-42/definitions",
		},
		{
			name:     "StateDelta",
			builder:  topics.StateDelta,
			expected: "lattice/dev-42/state/delta",
		},
		{
			name:     "StateFull",
			builder:  topics.StateFull,
			expected: "lattice/dev-42/state/full",
		},
		{
			name:     "SystemStatus",
			builder:  topics.SystemStatus,
			expected: "lattice/dev-42/system/status",
		},
		{
			name:     "AllDeviceTopics",
			builder:  topics.AllDeviceTopics,
			expected: "lattice/dev-42/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

// =============================================================================
// Status Payload Tests
// =============================================================================

func TestBuildOnlinePayload(t *testing.T) {
	payload := buildOnlinePayload("lattice-test")

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("online payload is not valid JSON: %v", err)
	}
	if decoded["status"] != "online" {
		t.Errorf("status = %v, want online", decoded["status"])
	}
	if decoded["client_id"] != "lattice-test" {
		t.Errorf("client_id = %v, want lattice-test", decoded["client_id"])
	}
}

func TestBuildOfflinePayload(t *testing.T) {
	payload := buildOfflinePayload("lattice-test")

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("offline payload is not valid JSON: %v", err)
	}
	if decoded["status"] != "offline" {
		t.Errorf("status = %v, want offline", decoded["status"])
	}
	if decoded["reason"] != "graceful_shutdown" {
		t.Errorf("reason = %v, want graceful_shutdown", decoded["reason"])
	}
}

// =============================================================================
// Option Building Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "lattice-test" {
		t.Errorf("ClientID = %q, want lattice-test", opts.ClientID)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("broker scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set for TLS broker")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	topics := NewTopics("dev-42")
	opts := buildClientOptions(cfg)
	configureLWT(opts, topics, cfg.Broker.ClientID)

	if opts.WillTopic != "lattice/dev-42/system/status" {
		t.Errorf("WillTopic = %q, want lattice/dev-42/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var decoded map[string]any
	if err := json.Unmarshal(opts.WillPayload, &decoded); err != nil {
		t.Fatalf("will payload is not valid JSON: %v", err)
	}
	if decoded["reason"] != "unexpected_disconnect" {
		t.Errorf("will reason = %v, want unexpected_disconnect", decoded["reason"])
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := newDisconnectedClient(t)
	if client.IsConnected() {
		t.Error("IsConnected() should be false for unconnected client")
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Publish(client.Topics().StateDelta(), []byte("test"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Publish("", []byte("test"), 1, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Publish("test/topic", []byte("test"), 3, false)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	client := newDisconnectedClient(t)

	payload := make([]byte, maxPayloadSize+1)
	err := client.Publish("test/topic", payload, 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribeEmptyTopic(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeInvalidQoS(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Subscribe("test/topic", 3, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Subscribe("test/topic", 1, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribeDisconnected(t *testing.T) {
	client := newDisconnectedClient(t)

	err := client.Subscribe("test/topic", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := newDisconnectedClient(t)

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestUnsubscribeDisconnected(t *testing.T) {
	client := newDisconnectedClient(t)

	if err := client.Unsubscribe("test/topic"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := newDisconnectedClient(t)

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := newDisconnectedClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := newDisconnectedClient(t)

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestBuildLWTPayload(t *testing.T) {
	payload := buildLWTPayload("lattice-test")

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("LWT payload is not valid JSON: %v", err)
	}
	if decoded["status"] != "offline" {
		t.Errorf("status = %v, want offline", decoded["status"])
	}
	if decoded["reason"] != "unexpected_disconnect" {
		t.Errorf("reason = %v, want unexpected_disconnect", decoded["reason"])
	}
}

// newDisconnectedClient builds a client without touching the network.
func newDisconnectedClient(t *testing.T) *Client {
	t.Helper()
	cfg := testConfig()
	return &Client{
		cfg:           cfg,
		topics:        NewTopics("dev-42"),
		options:       buildClientOptions(cfg),
		subscriptions: make(map[string]subscription),
	}
}
