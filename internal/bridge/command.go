package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/domo-bridge/internal/audit"
	"github.com/nerrad567/domo-bridge/internal/domo"
	"github.com/nerrad567/domo-bridge/internal/element"
)

// Command resolution errors. The API maps these to client errors;
// anything else from ExecuteCommand is a panel failure.
var (
	// ErrUnknownElement means the element is not in the catalog.
	ErrUnknownElement = errors.New("bridge: unknown element")

	// ErrUnsupportedAction means the element's class has no such
	// action.
	ErrUnsupportedAction = errors.New("bridge: unsupported action")

	// ErrInvalidArgument means a required argument is missing or
	// malformed.
	ErrInvalidArgument = errors.New("bridge: invalid argument")
)

// tickMode says what a command does to the element's position
// estimator.
type tickMode int

const (
	tickNone tickMode = iota
	tickStart
	tickClear
)

// commandPlan is a resolved command: the panel invocation plus the
// optimistic bookkeeping around it.
type commandPlan struct {
	// panelAction is the panel-level action name, recorded in the
	// audit log.
	panelAction string

	// invoke sends the command to the panel.
	invoke func(ctx context.Context) error

	// predict is the optimistic state fragment published before the
	// panel confirms. Empty for stateless commands.
	predict element.State

	// hold keeps the prediction authoritative over polls for the
	// configured window. Used for dimmer levels, which the panel
	// reports with a lag.
	hold bool

	// tick stamps or clears the position estimator.
	tick tickMode

	// verify schedules a read-back after the command. Stateless
	// button presses skip it.
	verify bool
}

// handleSetMessage is the MQTT intake for element command topics.
// Rejections and panel failures are logged (and audited) inside
// ExecuteCommand; intake drops them so a bad payload cannot wedge the
// subscription.
func (b *Bridge) handleSetMessage(topic string, payload []byte) error {
	encoded := b.topics.ElementIDSegment(topic)
	if encoded == "" {
		b.logWarn("command on malformed topic", "topic", topic)
		return nil
	}
	elementID, ok := b.encodedIDs[encoded]
	if !ok {
		b.logWarn("command for unknown element", "topic", topic)
		return nil
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		b.logWarn("malformed command payload", "element_id", elementID, "error", err)
		return nil
	}
	action, _ := raw["action"].(string)
	if action == "" {
		b.logWarn("command without action", "element_id", elementID)
		return nil
	}
	delete(raw, "action")

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	_ = b.ExecuteCommand(ctx, elementID, action, raw, SourceMQTT)
	return nil
}

// handleRefreshMessage is the MQTT intake for refresh requests.
func (b *Bridge) handleRefreshMessage(string, []byte) error {
	b.logDebug("refresh requested over mqtt")
	b.refresher.Refresh()
	return nil
}

// ExecuteCommand resolves and runs one command against an element:
// the predicted effect is merged and published immediately, the panel
// command is sent, the attempt is recorded in the audit log and a
// verification read-back is scheduled. Shared by the MQTT intake and
// the HTTP API.
func (b *Bridge) ExecuteCommand(ctx context.Context, elementID, action string, params map[string]any, source string) error {
	info, ok := b.catalog[elementID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownElement, elementID)
	}

	plan, err := b.resolveCommand(info, action, params)
	if err != nil {
		b.logWarn("command rejected",
			"element_id", elementID, "action", action, "error", err)
		return err
	}

	b.applyTick(elementID, plan.tick)

	if len(plan.predict) > 0 {
		predicted := b.tracker.Predict(elementID, plan.predict)
		if plan.hold {
			b.tracker.Hold(elementID, plan.predict)
		}
		b.publishElementState(elementID,
			b.presentState(elementID, info.Class, predicted),
			element.StateSourceCommand)
	}

	start := time.Now()
	sendErr := plan.invoke(ctx)
	durationMS := int(time.Since(start).Milliseconds())

	entry := &audit.CommandLog{
		ElementID:  elementID,
		Action:     plan.panelAction,
		Success:    sendErr == nil,
		Source:     source,
		DurationMS: &durationMS,
	}
	if len(params) > 0 {
		entry.Arguments = params
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := b.audit.Create(b.ctx, entry); err != nil {
		b.logWarn("audit write failed", "element_id", elementID, "error", err)
	}

	if plan.verify {
		b.tracker.ScheduleVerify(b.ctx, elementID, info.Class)
	}

	if sendErr != nil {
		b.countCommand(true)
		b.logWarn("panel command failed",
			"element_id", elementID, "action", plan.panelAction, "error", sendErr)
		return fmt.Errorf("sending %s to %s: %w", plan.panelAction, elementID, sendErr)
	}

	b.countCommand(false)
	b.logInfo("command executed",
		"element_id", elementID,
		"action", plan.panelAction,
		"source", source,
		"duration_ms", durationMS)
	return nil
}

// applyTick stamps or clears the position estimator for shutter
// movement commands, so the first poll measures travel from the
// command rather than from the previous cycle.
func (b *Bridge) applyTick(elementID string, tick tickMode) {
	est := b.estimators[elementID]
	if est == nil {
		return
	}
	switch tick {
	case tickStart:
		est.StartTick()
	case tickClear:
		est.ClearTick()
	}
}

// resolveCommand maps a (class, action, params) triple onto the
// panel's typed vocabulary.
func (b *Bridge) resolveCommand(info element.Element, action string, params map[string]any) (commandPlan, error) {
	id := info.ID

	switch info.Class {
	case element.ClassLight, element.ClassDimmableLight:
		return b.resolveLight(info, action, params)

	case element.ClassShutter:
		switch action {
		case "open":
			return commandPlan{
				panelAction: "turnup",
				invoke:      func(ctx context.Context) error { return b.panel.CoverCommand(ctx, id, "open") },
				predict:     element.State{"is_opening": true, "is_closing": false},
				tick:        tickStart,
				verify:      true,
			}, nil
		case "close":
			return commandPlan{
				panelAction: "turndown",
				invoke:      func(ctx context.Context) error { return b.panel.CoverCommand(ctx, id, "close") },
				predict:     element.State{"is_opening": false, "is_closing": true},
				tick:        tickStart,
				verify:      true,
			}, nil
		case "stop":
			return commandPlan{
				panelAction: "stop",
				invoke:      func(ctx context.Context) error { return b.panel.CoverCommand(ctx, id, "stop") },
				predict:     element.State{"is_opening": false, "is_closing": false},
				tick:        tickClear,
				verify:      true,
			}, nil
		}

	case element.ClassShutterControl:
		switch action {
		case "up":
			return commandPlan{
				panelAction: domo.ActionPressUp,
				invoke:      func(ctx context.Context) error { return b.panel.PressButton(ctx, id, domo.ActionPressUp) },
			}, nil
		case "down":
			return commandPlan{
				panelAction: domo.ActionPressDown,
				invoke:      func(ctx context.Context) error { return b.panel.PressButton(ctx, id, domo.ActionPressDown) },
			}, nil
		}

	case element.ClassScenario:
		if action == "press" {
			return commandPlan{
				panelAction: domo.ActionPressScenario,
				invoke:      func(ctx context.Context) error { return b.panel.PressButton(ctx, id, domo.ActionPressScenario) },
			}, nil
		}

	case element.ClassThermostat:
		return b.resolveThermostat(info, action, params)

	case element.ClassAirConditioner:
		return b.resolveAirConditioner(info, action, params)

	case element.ClassWaterHeater:
		return b.resolveWaterHeater(info, action, params)

	case element.ClassLoadManagement:
		switch action {
		case "turn_on":
			return commandPlan{
				panelAction: "Runpwm",
				invoke:      func(ctx context.Context) error { return b.panel.SwitchLoad(ctx, id, true) },
				predict:     element.State{"is_running": true},
				verify:      true,
			}, nil
		case "turn_off":
			return commandPlan{
				panelAction: "Stoppwm",
				invoke:      func(ctx context.Context) error { return b.panel.SwitchLoad(ctx, id, false) },
				predict:     element.State{"is_running": false},
				verify:      true,
			}, nil
		}
	}

	return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
}

func (b *Bridge) resolveLight(info element.Element, action string, params map[string]any) (commandPlan, error) {
	id := info.ID

	dim := func(level int) commandPlan {
		level = min(100, max(0, level))
		return commandPlan{
			panelAction: "setdimmer",
			invoke:      func(ctx context.Context) error { return b.panel.SetDimmer(ctx, id, level) },
			predict:     element.State{"is_on": level > 0, "brightness": level},
			hold:        true,
			verify:      true,
		}
	}

	switch action {
	case "turn_on":
		// A brightness riding on turn_on routes through the dimmer.
		if level, ok := paramInt(params, "brightness"); ok {
			if !info.Class.Dimmable() {
				return commandPlan{}, fmt.Errorf("%w: brightness on non-dimmable light", ErrInvalidArgument)
			}
			return dim(level), nil
		}
		return commandPlan{
			panelAction: "switchon",
			invoke:      func(ctx context.Context) error { return b.panel.SwitchLight(ctx, id, true) },
			predict:     element.State{"is_on": true},
			verify:      true,
		}, nil

	case "turn_off":
		return commandPlan{
			panelAction: "switchoff",
			invoke:      func(ctx context.Context) error { return b.panel.SwitchLight(ctx, id, false) },
			predict:     element.State{"is_on": false},
			verify:      true,
		}, nil

	case "set_brightness":
		if !info.Class.Dimmable() {
			return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
		}
		level, ok := paramInt(params, "brightness")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: brightness is required", ErrInvalidArgument)
		}
		return dim(level), nil
	}

	return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
}

func (b *Bridge) resolveThermostat(info element.Element, action string, params map[string]any) (commandPlan, error) {
	id := info.ID

	switch action {
	case "set_mode":
		mode, ok := paramString(params, "mode")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: mode is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setTMode",
			invoke:      func(ctx context.Context) error { return b.panel.SetThermostatMode(ctx, id, mode) },
			predict:     element.State{"t_mode": mode},
			verify:      true,
		}, nil

	case "set_season":
		season, ok := paramString(params, "season")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: season is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setSeason",
			invoke:      func(ctx context.Context) error { return b.panel.SetThermostatSeason(ctx, id, season) },
			predict:     element.State{"season": season},
			verify:      true,
		}, nil

	case "set_max_temp":
		temp, ok := paramFloat(params, "temperature")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: temperature is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setTMax",
			invoke:      func(ctx context.Context) error { return b.panel.SetThermostatMaxTemp(ctx, id, temp) },
			predict:     element.State{"t_max": temp},
			verify:      true,
		}, nil

	case "set_min_temp":
		temp, ok := paramFloat(params, "temperature")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: temperature is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setTMin",
			invoke:      func(ctx context.Context) error { return b.panel.SetThermostatMinTemp(ctx, id, temp) },
			predict:     element.State{"t_min": temp},
			verify:      true,
		}, nil

	case "set_speed":
		speed, ok := paramInt(params, "speed")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: speed is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setSpeed",
			invoke:      func(ctx context.Context) error { return b.panel.SetThermostatSpeed(ctx, id, speed) },
			predict:     element.State{"speed": speed},
			verify:      true,
		}, nil
	}

	return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
}

func (b *Bridge) resolveAirConditioner(info element.Element, action string, params map[string]any) (commandPlan, error) {
	id := info.ID

	switch action {
	case "turn_on":
		// Switching on from off rides the plain switch action; the
		// unit resumes its previous mode.
		return commandPlan{
			panelAction: "switchon",
			invoke:      func(ctx context.Context) error { return b.panel.SwitchLight(ctx, id, true) },
			predict:     element.State{"is_on": true},
			verify:      true,
		}, nil

	case "turn_off":
		return commandPlan{
			panelAction: "switchoff",
			invoke:      func(ctx context.Context) error { return b.panel.SetACMode(ctx, id, "off") },
			predict:     element.State{"is_on": false, "mode": "off"},
			verify:      true,
		}, nil

	case "set_mode":
		mode, ok := paramString(params, "mode")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: mode is required", ErrInvalidArgument)
		}
		panelAction, known := domo.ACModeAction(mode)
		if !known {
			return commandPlan{}, fmt.Errorf("%w: unknown ac mode %q", ErrInvalidArgument, mode)
		}
		return commandPlan{
			panelAction: panelAction,
			invoke:      func(ctx context.Context) error { return b.panel.SetACMode(ctx, id, mode) },
			predict:     element.State{"mode": mode, "is_on": mode != "off"},
			verify:      true,
		}, nil

	case "set_temperature":
		temp, ok := paramFloat(params, "temperature")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: temperature is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "settemperaturedesired",
			invoke:      func(ctx context.Context) error { return b.panel.SetACTemperature(ctx, id, temp) },
			predict:     element.State{"target_temp": temp},
			verify:      true,
		}, nil

	case "set_fan_speed":
		speed, ok := paramInt(params, "speed")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: speed is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "setdimmer",
			invoke:      func(ctx context.Context) error { return b.panel.SetACFanSpeed(ctx, id, speed) },
			predict:     element.State{"fan_speed": speed},
			verify:      true,
		}, nil

	case "set_fan_mode":
		mode, ok := paramString(params, "fan_mode")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: fan_mode is required", ErrInvalidArgument)
		}
		speed := domo.FanModeSpeed(mode)
		return commandPlan{
			panelAction: "setdimmer",
			invoke:      func(ctx context.Context) error { return b.panel.SetACFanSpeed(ctx, id, speed) },
			predict:     element.State{"fan_speed": speed},
			verify:      true,
		}, nil
	}

	return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
}

func (b *Bridge) resolveWaterHeater(info element.Element, action string, params map[string]any) (commandPlan, error) {
	id := info.ID

	switch action {
	case "set_temperature":
		temp, ok := paramFloat(params, "temperature")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: temperature is required", ErrInvalidArgument)
		}
		return commandPlan{
			panelAction: "settemperaturedesiredH2O",
			invoke:      func(ctx context.Context) error { return b.panel.SetWaterHeaterTemperature(ctx, id, temp) },
			predict:     element.State{"h2o_setted": temp},
			verify:      true,
		}, nil

	case "set_mode":
		mode, ok := paramString(params, "mode")
		if !ok {
			return commandPlan{}, fmt.Errorf("%w: mode is required", ErrInvalidArgument)
		}
		panelAction, known := domo.WaterHeaterModeAction(mode)
		if !known {
			return commandPlan{}, fmt.Errorf("%w: unknown water heater mode %q", ErrInvalidArgument, mode)
		}
		// The mode flags come back from the panel as opaque integers,
		// so there is nothing worth predicting; verification publishes
		// the truth.
		return commandPlan{
			panelAction: panelAction,
			invoke:      func(ctx context.Context) error { return b.panel.SetWaterHeaterMode(ctx, id, mode) },
			verify:      true,
		}, nil

	case "turn_on":
		return commandPlan{
			panelAction: "switchon",
			invoke:      func(ctx context.Context) error { return b.panel.SwitchLight(ctx, id, true) },
			predict:     element.State{"is_on": true},
			verify:      true,
		}, nil

	case "turn_off":
		return commandPlan{
			panelAction: "switchoff",
			invoke:      func(ctx context.Context) error { return b.panel.SwitchLight(ctx, id, false) },
			predict:     element.State{"is_on": false},
			verify:      true,
		}, nil
	}

	return commandPlan{}, fmt.Errorf("%w: %q for class %s", ErrUnsupportedAction, action, info.Class)
}

// paramFloat reads a numeric parameter. JSON numbers decode as
// float64.
func paramFloat(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// paramInt reads a numeric parameter, truncating fractions.
func paramInt(params map[string]any, key string) (int, bool) {
	f, ok := paramFloat(params, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// paramString reads a non-empty string parameter.
func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
