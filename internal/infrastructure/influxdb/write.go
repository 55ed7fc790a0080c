package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteElementMetric records one numeric reading for an element in
// the element_metrics measurement, tagged by element id and metric
// name. This is the workhorse for telemetry decoded from panel
// statuses.
//
//	client.WriteElementMetric("72623/121", "power", 235.0)
//	client.WriteElementMetric("72623/140", "temperature", 21.5)
//
// Non-blocking; the point joins the current batch. A closed or
// disabled client drops it.
func (c *Client) WriteElementMetric(elementID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"element_metrics",
		map[string]string{
			"element_id": elementID,
			"metric":     metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	))
}

// WriteEnergyMetric records instantaneous power next to the running
// kWh total derived from it, in the energy measurement. A zero total
// omits the energy_kwh field so unknown totals do not graph as zero.
func (c *Client) WriteEnergyMetric(elementID string, metric string, powerWatts float64, energyKWh float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"power_watts": powerWatts,
	}
	if energyKWh > 0 {
		fields["energy_kwh"] = energyKWh
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"energy",
		map[string]string{
			"element_id": elementID,
			"metric":     metric,
		},
		fields,
		time.Now(),
	))
}

// WritePoint records an arbitrary measurement with caller-chosen tags
// and fields, timestamped now. Poll cycle statistics use this. Keep
// tags low-cardinality; they are indexed.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime is WritePoint with an explicit timestamp, for
// data that does not belong to "now".
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
