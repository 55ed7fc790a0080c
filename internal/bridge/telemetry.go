package bridge

import (
	"context"
	"time"

	"github.com/nerrad567/domo-bridge/internal/element"
)

// recordTelemetry feeds one element's polled state into the energy
// meter and, when a time-series writer is configured, forwards power,
// energy and gauge readings. Runs on every cycle regardless of change
// detection: the integrator needs regular samples.
func (b *Bridge) recordTelemetry(elementID string, class element.Class, state element.State) {
	for metric, watts := range powerStreams(class, state) {
		b.meter.Observe(elementID, metric, watts)

		if b.telemetry == nil {
			continue
		}
		kwh, _ := b.meter.Total(elementID, metric)
		b.telemetry.WriteEnergyMetric(elementID, metric, watts, kwh)
	}

	if b.telemetry == nil {
		return
	}

	switch class {
	case element.ClassThermostat:
		if temp, ok := state.Float("temperature"); ok {
			b.telemetry.WriteElementMetric(elementID, "temperature", temp)
		}
	case element.ClassInverter:
		for metric, value := range inverterGauges(state) {
			b.telemetry.WriteElementMetric(elementID, metric, value)
		}
	}
}

// powerStreams extracts the instantaneous power readings (watts) a
// class reports, keyed by metric name. These are the streams the
// energy meter integrates.
func powerStreams(class element.Class, state element.State) map[string]float64 {
	switch class {
	case element.ClassPowerSensor:
		if watts, ok := state.Float("power"); ok {
			return map[string]float64{"power": watts}
		}

	case element.ClassLoadManagement:
		if watts, ok := state.Float("current_power"); ok {
			return map[string]float64{"current_power": watts}
		}

	case element.ClassInverter:
		// Every inverter channel reported in watts is a power stream;
		// the decoder tags each record with its unit.
		streams := make(map[string]float64)
		for metric, value := range state {
			record, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if unit, _ := record["unit"].(string); unit != "W" {
				continue
			}
			if watts, ok := record["value"].(float64); ok {
				streams[metric] = watts
			}
		}
		if len(streams) > 0 {
			return streams
		}
	}
	return nil
}

// inverterGauges extracts the inverter's non-power numeric channels
// (voltages, currents, temperatures, charge levels). Unitless channels
// such as the status word are skipped.
func inverterGauges(state element.State) map[string]float64 {
	gauges := make(map[string]float64)
	for metric, value := range state {
		record, ok := value.(map[string]any)
		if !ok {
			continue
		}
		unit, _ := record["unit"].(string)
		if unit == "" || unit == "W" {
			continue
		}
		if v, ok := record["value"].(float64); ok {
			gauges[metric] = v
		}
	}
	return gauges
}

// energyFlushLoop persists the meter on the configured interval, so a
// crash loses at most one interval of accumulation.
func (b *Bridge) energyFlushLoop() {
	defer b.wg.Done()

	interval := b.cfg.GetEnergyFlushInterval()
	if interval <= 0 {
		interval = defaultEnergyFlushInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushEnergy(b.ctx)
		case <-b.done:
			return
		}
	}
}

// flushEnergy writes the meter's current totals to the database.
func (b *Bridge) flushEnergy(ctx context.Context) {
	totals := b.meter.Snapshot()
	if len(totals) == 0 {
		return
	}
	if err := b.totals.Save(ctx, totals); err != nil {
		b.logWarn("energy totals flush failed", "error", err)
		return
	}
	b.logDebug("energy totals flushed", "streams", len(totals))
}

// historyPruneLoop removes state history rows past retention.
func (b *Bridge) historyPruneLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := b.history.PruneHistory(b.ctx, historyRetention)
			if err != nil {
				b.logWarn("state history prune failed", "error", err)
				continue
			}
			if removed > 0 {
				b.logInfo("state history pruned", "removed", removed)
			}
		case <-b.done:
			return
		}
	}
}
