// Package energy derives cumulative energy (kWh) from instantaneous
// power readings.
//
// The panel exposes power in watts only, so consumption is integrated
// bridge-side with the trapezoidal rule: each poll contributes the
// average of the previous and current reading multiplied by the
// elapsed time. Negative readings clamp to zero and the first reading
// of a stream only seeds the baseline.
//
// A Meter multiplexes integrators across element power streams, and
// the totals repository persists accumulated values so lifetime
// counters survive restarts. Elapsed time uses the monotonic clock,
// wall-clock adjustments never corrupt the totals.
package energy
