package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStateMetric records one numeric state-property sample in the
// state_metrics measurement. The notifier calls this for every numeric
// property it drains. Non-blocking; points are batched and flushed in the
// background.
func (c *Client) WriteStateMetric(deviceID, property string, value float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"state_metrics",
		map[string]string{
			"device_id": deviceID,
			"property":  property,
		},
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandTransition counts one command lifecycle transition in the
// command_transitions measurement. The command manager calls this for every
// accepted transition, which makes throughput and failure rates queryable
// per command name.
func (c *Client) WriteCommandTransition(deviceID, name, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_transitions",
		map[string]string{
			"device_id": deviceID,
			"command":   name,
			"state":     state,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
