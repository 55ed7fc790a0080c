package element

import (
	"regexp"
	"strings"
)

// deliosMetric names one recognised inverter channel and its unit.
type deliosMetric struct {
	key  string
	unit string // empty means unitless
}

// deliosMetrics maps the panel's long parameter names to clean metric
// keys. Names not in this table are silently dropped.
var deliosMetrics = map[string]deliosMetric{
	"Input Volt Phase R":          {"grid_voltage", "V"},
	"Input Ampere Phase R":        {"grid_current", "A"},
	"Input Watt Phase R":          {"grid_power_in", "W"},
	"Output Volt Phase R":         {"output_voltage", "V"},
	"Output Ampere Phase R":       {"output_current", "A"},
	"Output Watt Phase R":         {"grid_power_out", "W"},
	"Frequency In":                {"frequency_in", "Hz"},
	"Frequency Out":               {"frequency_out", "Hz"},
	"Inverter Charge Percent":     {"inverter_charge", "%"},
	"Input Volt Photovoltaic 1":   {"pv1_voltage", "V"},
	"Input Ampere Photovoltaic 1": {"pv1_current", "A"},
	"Input Watt Photovoltaic 1":   {"pv1_power", "W"},
	"Input Volt Photovoltaic 2":   {"pv2_voltage", "V"},
	"Input Ampere Photovoltaic 2": {"pv2_current", "A"},
	"Input Watt Photovoltaic 2":   {"pv2_power", "W"},
	"Battery Volt":                {"battery_voltage", "V"},
	"Battery Ampere":              {"battery_current", "A"},
	"Battery Charge Percent":      {"battery_charge", "%"},
	"Inverter Temperature":        {"inverter_temperature", "°C"},
	"Case Temperature":            {"case_temperature", "°C"},
	"Energy Battery":              {"energy_battery", "W"},
	"Energy Total":                {"energy_total", "W"},
	"Energy In":                   {"energy_in", "W"},
	"Energy Out":                  {"energy_out", "W"},
	"Inverter Status":             {"inverter_status", ""},
}

// deliosNamePattern extracts the metric name between parentheses, e.g.
// "Delios InverterV (Input Volt Phase R)" -> "Input Volt Phase R".
var deliosNamePattern = regexp.MustCompile(`\((.+?)\)`)

// decodeInverter parses the Delios inverter's single "parameter" field,
// a semicolon-separated list of "LongName(MetricName)=value" pairs.
//
// Each recognised metric yields a {"value": float|null, "unit": string|null}
// record keyed by its clean name. Pairs whose metric name is not in the
// table are dropped without logging; an absent or empty parameter field
// decodes to an empty state.
func decodeInverter(snap Snapshot) State {
	param, _ := snap.Value("parameter")
	if param == "" {
		return State{}
	}

	metrics := State{}
	for _, pair := range strings.Split(param, ";") {
		pair = strings.TrimSpace(pair)
		rawName, rawValue, found := strings.Cut(pair, "=")
		if !found {
			continue
		}

		name := extractDeliosName(rawName)
		metric, ok := deliosMetrics[name]
		if !ok {
			continue
		}

		var unit any
		if metric.unit != "" {
			unit = metric.unit
		}
		metrics[metric.key] = map[string]any{
			"value": parseFloatOrNil(rawValue),
			"unit":  unit,
		}
	}

	return metrics
}

// extractDeliosName pulls the metric name out of a raw parameter name.
// The name is normally parenthesised; older firmware omits the
// parentheses and prefixes the name with "Delios Inverter" instead.
func extractDeliosName(rawName string) string {
	if match := deliosNamePattern.FindStringSubmatch(rawName); match != nil {
		return match[1]
	}

	name := strings.TrimSpace(strings.ReplaceAll(rawName, "Delios Inverter", ""))
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		name = strings.TrimSuffix(strings.TrimPrefix(name, "("), ")")
	}
	return name
}
