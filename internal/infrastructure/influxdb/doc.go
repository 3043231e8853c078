// Package influxdb stores the agent's telemetry in InfluxDB v2.
//
// Two measurements are written: state_metrics carries the numeric
// state-property samples the notifier mirrors while draining the change
// queue, and command_transitions counts command lifecycle transitions as
// reported by the command manager.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteStateMetric("dev-42", "power.batteryLevel", 87, time.Now())
//	client.WriteCommandTransition("dev-42", "base.reboot", "done")
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and
// non-blocking; batch failures arrive on the SetOnError callback.
package influxdb
