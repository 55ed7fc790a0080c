package element

import (
	"fmt"
	"strconv"
	"strings"
)

// Decoder is the signature of a per-class decode function: a pure, total
// mapping from a raw status snapshot to typed state. Decoders tolerate
// missing and malformed values; they never fail on panel data.
type Decoder func(Snapshot) State

// decoders is the static class -> decoder dispatch table.
var decoders = map[Class]Decoder{
	ClassLight:          decodeLight,
	ClassDimmableLight:  decodeLight,
	ClassShutter:        decodeShutter,
	ClassPowerSensor:    decodePowerSensor,
	ClassThermostat:     decodeThermostat,
	ClassAirConditioner: decodeAirConditioner,
	ClassWaterHeater:    decodeWaterHeater,
	ClassInverter:       decodeInverter,
	ClassLoadManagement: decodeLoadManagement,
	ClassStatus:         decodeStatus,
	ClassScenario:       decodeScenario,
	ClassShutterControl: decodeShutterControl,
}

// Decode decodes a snapshot against the given class's registered decoder.
//
// Returns ErrNoDecoder if the class has no decoder; such elements yield
// no published state. Callers treat per-element decode failures as
// skip-and-log, never as cycle failures.
func Decode(class Class, snap Snapshot) (State, error) {
	decoder, ok := decoders[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDecoder, class)
	}
	return decoder(snap), nil
}

// HasDecoder reports whether the class has a registered decoder.
func HasDecoder(class Class) bool {
	_, ok := decoders[class]
	return ok
}

// decodeLight handles both on/off and dimmable lights. The panel
// reports power as a presence-only flag and brightness as a 0-100
// integer; non-dimmable lights simply never report a dimmer value.
func decodeLight(snap Snapshot) State {
	return State{
		"is_on":      snap.Has("isswitchedon"),
		"brightness": snap.Int("getdimmer"),
	}
}

// decodeShutter reports movement only. The panel gives no position
// telemetry; the two flags are mutually exclusive by protocol contract
// but this is not enforced here.
func decodeShutter(snap Snapshot) State {
	return State{
		"is_opening": snap.Has("isgoingup"),
		"is_closing": snap.Has("isgoingdown"),
	}
}

func decodePowerSensor(snap Snapshot) State {
	return State{
		"power": snap.Float("TA Value"),
	}
}

// decodeThermostat normalises temperatures reported in tenths: the
// panel switches to tenths-of-degree encoding above 100, so a raw 250
// means 25.0 degrees while a raw 25 is taken as-is.
func decodeThermostat(snap Snapshot) State {
	temperature := snap.Float("temperature")
	if f, ok := temperature.(float64); ok && f > 100 {
		temperature = f / 10.0
	}

	season, _ := snap.Value("season")
	if season == "" {
		season = "Winter"
	}
	tMode, _ := snap.Value("tMode")
	if tMode == "" {
		tMode = "Off"
	}

	return State{
		"temperature":        temperature,
		"t_min":              snap.Float("tMin"),
		"t_max":              snap.Float("tMax"),
		"speed":              snap.Int("speed"),
		"season":             season,
		"t_mode":             tMode,
		"delta_t":            snap.Float("deltat"),
		"calibration":        snap.Float("calibration"),
		"defrost":            snap.Float("defrost"),
		"reactivity":         snap.Int("reactivity"),
		"zone_active_winter": snap.Has("zoneactive"),
		"zone_active_summer": snap.Has("zoneactivesummer"),
	}
}

// decodeAirConditioner decodes the Modbus Samsung AC unit. The on flag
// is the inverse of the panel's "IsSwitchedOff" marker, and the mode is
// resolved from per-mode flags with first match winning. Units that do
// not report temperatures as discrete statuses fall back to the
// colon-delimited parameter grammar.
func decodeAirConditioner(snap Snapshot) State {
	currentTemp := snap.Float("Get AC unit Temperature Room")
	targetTemp := snap.Float("Get AC unit Temperature Setted")

	isOn := !snap.Has("IsSwitchedOff")

	mode := "off"
	if isOn {
		switch {
		case snap.Has("Get AC unit Mode is Heat"):
			mode = "heat"
		case snap.Has("Get AC unit Mode is Cool"):
			mode = "cool"
		case snap.Has("Get AC unit Mode is Auto"):
			mode = "auto"
		case snap.Has("Get AC unit Mode is Dry"):
			mode = "dry"
		case snap.Has("Get AC unit Mode is Fan"):
			mode = "fan_only"
		}
	}

	if currentTemp == nil || targetTemp == nil {
		if param, _ := snap.Value("parameter"); param != "" {
			parsed := parseColonParameters(param)
			if currentTemp == nil {
				currentTemp = parseFloatOrNil(parsed["AC unit Temperature Room"])
			}
			if targetTemp == nil {
				targetTemp = parseFloatOrNil(parsed["AC unit Temperature Setted"])
			}
		}
	}

	return State{
		"is_on":        isOn,
		"is_connected": snap.Has("IsConnected"),
		"mode":         mode,
		"current_temp": currentTemp,
		"target_temp":  targetTemp,
		"fan_speed":    snap.Int("speed"),
		"error_code":   snap.Int("Get AC unit Error Code"),
		"delta_t":      snap.Float("deltat"),
	}
}

// decodeWaterHeater decodes the Modbus Samsung H2O unit. Unlike the AC
// decoder there is no parameter-string fallback.
func decodeWaterHeater(snap Snapshot) State {
	return State{
		"is_on":         snap.Has("isswitchedon"),
		"is_connected":  snap.Has("IsConnected"),
		"is_heating":    snap.Has("Get AC unit Mode is Heat"),
		"h2o_measured":  snap.Float("Get AC unit H2O Temperature Measured"),
		"h2o_setted":    snap.Float("Get AC unit H2O Temperature Setted"),
		"h2o_mode":      snap.Int("Get AC unit H2O Mode"),
		"h2o_operation": snap.Int("Get AC unit H2O Operation"),
		"water_in":      snap.Float("Get AC unit Water In Temperature"),
		"water_out":     snap.Float("Get AC unit Water Out Temperature"),
		"error_code":    snap.Int("Get AC unit Error Code"),
	}
}

func decodeLoadManagement(snap Snapshot) State {
	return State{
		"current_power": snap.Float("pwmValue"),
		"max_power":     snap.Float("MaxWattCalculatedValue"),
		"is_running":    snap.Has("IsRun"),
		"is_normal":     snap.Has("NormalMeasure"),
	}
}

func decodeStatus(snap Snapshot) State {
	return State{
		"is_on": snap.Has("statuson"),
	}
}

func decodeScenario(snap Snapshot) State {
	return State{
		"released": snap.Has("released"),
	}
}

// decodeShutterControl yields no state: shutter-control switches are
// command-only.
func decodeShutterControl(_ Snapshot) State {
	return State{}
}

// parseColonParameters parses the AC fallback parameter grammar, a
// semicolon-separated list of "name:value:unit" entries, into a
// name -> value map. Entries without at least name and value are
// skipped. Note this grammar is distinct from the inverter's
// "name=value" grammar; the two are deliberately kept separate per
// device family.
func parseColonParameters(param string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(param, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments := strings.Split(part, ":")
		if len(segments) >= 2 {
			result[strings.TrimSpace(segments[0])] = strings.TrimSpace(segments[1])
		}
	}
	return result
}

// parseFloatOrNil parses s as a float64, returning nil when s is empty
// or malformed.
func parseFloatOrNil(s string) any {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return f
}
