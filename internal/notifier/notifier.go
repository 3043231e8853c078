package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lattice-home/lattice-agent/internal/infrastructure/mqtt"
	"github.com/lattice-home/lattice-agent/internal/state"
)

// DefaultDrainInterval is used when the host does not configure a cadence.
const DefaultDrainInterval = 5 * time.Second

// Publisher is the outbound MQTT surface the notifier needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsWriter receives numeric state samples for time-series storage.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteStateMetric(deviceID, property string, value float64, timestamp time.Time)
}

// Logger defines the logging interface used by the notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier is the single consumer of the state change queue. It publishes
// drained batches on the delta topic and, after a reconnect kick, the full
// retained state document.
type Notifier struct {
	states   *state.Manager
	pub      Publisher
	topics   mqtt.Topics
	qos      byte
	deviceID string
	interval time.Duration

	metrics MetricsWriter
	logger  Logger

	kick chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a notifier draining the manager's queue every interval.
// A non-positive interval falls back to DefaultDrainInterval.
func New(states *state.Manager, pub Publisher, topics mqtt.Topics, qos byte, deviceID string, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &Notifier{
		states:   states,
		pub:      pub,
		topics:   topics,
		qos:      qos,
		deviceID: deviceID,
		interval: interval,
		logger:   noopLogger{},
		kick:     make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// SetMetrics attaches a time-series sink for numeric property samples.
func (n *Notifier) SetMetrics(metrics MetricsWriter) {
	n.metrics = metrics
}

// Start launches the drain loop. It publishes the retained full state once
// up front so a newly provisioned device announces its state immediately.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return fmt.Errorf("notifier: already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	n.running = true

	if err := n.PublishFullState(); err != nil {
		n.logger.Warn("publishing initial full state", "error", err)
	}

	go n.run(runCtx)
	n.logger.Info("state notifier started", "interval", n.interval.String())
	return nil
}

// Stop terminates the drain loop after one final flush, so changes committed
// during shutdown still reach the controller.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	cancel, done := n.cancel, n.done
	n.mu.Unlock()

	cancel()
	<-done
	n.drain()
	n.logger.Info("state notifier stopped")
}

// Kick requests an immediate drain followed by a retained full-state
// publication. The MQTT reconnect handler calls this so a controller that
// missed deltas resynchronises. Kicks arriving while one is pending
// collapse into it.
func (n *Notifier) Kick() {
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			n.drain()

		case <-n.kick:
			n.drain()
			if err := n.PublishFullState(); err != nil {
				n.logger.Warn("publishing full state after kick", "error", err)
			}
		}
	}
}

// deltaDocument is the wire form of one drained batch.
type deltaDocument struct {
	DeviceID string               `json:"device_id"`
	Records  []state.ChangeRecord `json:"records"`
}

// drain empties the queue and publishes everything buffered since the last
// pass as a single delta document. When the publish fails (typically a
// broker outage) the records are returned to the queue, so the backlog keeps
// buffering under its capacity bound until a later pass succeeds.
func (n *Notifier) drain() {
	records := n.states.Queue().GetAllChanges()
	if len(records) == 0 {
		return
	}

	doc := deltaDocument{DeviceID: n.deviceID, Records: records}
	data, err := json.Marshal(doc)
	if err != nil {
		n.logger.Error("encoding state delta", "error", err)
		return
	}
	if err := n.pub.Publish(n.topics.StateDelta(), data, n.qos, false); err != nil {
		n.states.Queue().Requeue(records)
		n.logger.Warn("publishing state delta failed, records requeued",
			"records", len(records), "error", err)
		return
	}
	n.logger.Debug("state delta published", "records", len(records))

	n.mirrorMetrics(records)
}

// PublishFullState publishes the complete state document retained, so late
// subscribers always find the current state on the broker.
func (n *Notifier) PublishFullState() error {
	doc := n.states.GetStateValuesAsMap()
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding full state: %w", err)
	}
	if err := n.pub.Publish(n.topics.StateFull(), data, n.qos, true); err != nil {
		return fmt.Errorf("publishing full state: %w", err)
	}
	return nil
}

// mirrorMetrics forwards numeric samples to the time-series sink. Non-numeric
// properties are skipped; the sink only models scalar telemetry.
func (n *Notifier) mirrorMetrics(records []state.ChangeRecord) {
	if n.metrics == nil {
		return
	}
	for _, rec := range records {
		for name, value := range rec.Changes {
			if v, ok := asFloat(value); ok {
				n.metrics.WriteStateMetric(n.deviceID, name, v, rec.Timestamp)
			}
		}
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
