package domo

import (
	"context"
	"fmt"
	"strconv"
)

// Button press actions.
const (
	ActionPressScenario = "simulatepressure"
	ActionPressUp       = "simulateup"
	ActionPressDown     = "simulatedown"
)

// acModeActions maps generic climate modes to panel actions. Heating
// and cooling ride on the panel's season commands; the remaining modes
// have dedicated long-form actions.
var acModeActions = map[string]string{
	"heat":     "setseasonwinter",
	"cool":     "setseasonsummer",
	"auto":     "Set AC unit Mode Auto",
	"dry":      "Set AC unit Mode Dry",
	"fan_only": "Set AC unit Mode Fan",
}

// waterHeaterModeActions maps water heater operation modes to panel
// actions.
var waterHeaterModeActions = map[string]string{
	"eco":      "Set AC Temperature H2O Mode ECO",
	"standard": "Set AC Temperature H2O Mode STANDARD",
	"power":    "Set AC Temperature H2O Mode POWER",
	"force":    "Set AC Temperature H2O Mode FORCE",
}

// fanModeSpeeds maps named fan modes to panel speed percentages.
var fanModeSpeeds = map[string]int{
	"auto":   0,
	"low":    33,
	"medium": 66,
	"high":   100,
}

// SwitchLight turns a light (or any switchable element) on or off.
func (c *Client) SwitchLight(ctx context.Context, elementID string, on bool) error {
	action := "switchoff"
	if on {
		action = "switchon"
	}
	return c.SendAction(ctx, elementID, action, nil)
}

// SetDimmer sets a dimmer level, 0-100.
func (c *Client) SetDimmer(ctx context.Context, elementID string, level int) error {
	return c.SendAction(ctx, elementID, "setdimmer", Args{
		0: {Value: strconv.Itoa(level), Type: "int"},
	})
}

// CoverCommand drives a shutter. The generic commands "open", "close"
// and "stop" map to the panel's turnup/turndown/stop actions; anything
// else is passed through verbatim.
func (c *Client) CoverCommand(ctx context.Context, elementID, command string) error {
	action := command
	switch command {
	case "open":
		action = "turnup"
	case "close":
		action = "turndown"
	case "stop":
		action = "stop"
	}
	return c.SendAction(ctx, elementID, action, nil)
}

// SetThermostatMode sets the thermostat tMode (TMax, TMin, Chrono, Off).
func (c *Client) SetThermostatMode(ctx context.Context, elementID, mode string) error {
	return c.SendAction(ctx, elementID, "setTMode", Args{
		0: {Value: mode, Type: "QString"},
	})
}

// SetThermostatSeason sets the thermostat season (Winter, Summer).
func (c *Client) SetThermostatSeason(ctx context.Context, elementID, season string) error {
	return c.SendAction(ctx, elementID, "setSeason", Args{
		0: {Value: season, Type: "QString"},
	})
}

// SetThermostatMaxTemp sets the comfort setpoint. The panel expects
// tenths of a degree as a string.
func (c *Client) SetThermostatMaxTemp(ctx context.Context, elementID string, temp float64) error {
	return c.SendAction(ctx, elementID, "setTMax", Args{
		0: {Value: strconv.Itoa(int(temp * 10)), Type: "QString"},
	})
}

// SetThermostatMinTemp sets the eco setpoint, in tenths of a degree.
func (c *Client) SetThermostatMinTemp(ctx context.Context, elementID string, temp float64) error {
	return c.SendAction(ctx, elementID, "setTMin", Args{
		0: {Value: strconv.Itoa(int(temp * 10)), Type: "QString"},
	})
}

// SetThermostatSpeed sets the fan-coil speed percentage.
func (c *Client) SetThermostatSpeed(ctx context.Context, elementID string, speed int) error {
	return c.SendAction(ctx, elementID, "setSpeed", Args{
		0: {Value: strconv.Itoa(speed), Type: "int"},
	})
}

// SetACTemperature sets the AC unit's target temperature in whole
// degrees.
func (c *Client) SetACTemperature(ctx context.Context, elementID string, temp float64) error {
	return c.SendAction(ctx, elementID, "settemperaturedesired", Args{
		0: {Value: strconv.Itoa(int(temp)), Type: "int"},
	})
}

// SetACFanSpeed sets the AC fan speed percentage. The panel reuses the
// dimmer action for this.
func (c *Client) SetACFanSpeed(ctx context.Context, elementID string, speed int) error {
	return c.SendAction(ctx, elementID, "setdimmer", Args{
		0: {Value: strconv.Itoa(speed), Type: "int"},
	})
}

// ACModeAction translates a generic climate mode to the panel action
// implementing it. "off" maps to the plain switch-off action.
func ACModeAction(mode string) (string, bool) {
	if mode == "off" {
		return "switchoff", true
	}
	action, ok := acModeActions[mode]
	return action, ok
}

// SetACMode sets the AC operating mode (heat, cool, auto, dry,
// fan_only). "off" switches the unit off; note that switching a unit
// on from off is a separate SwitchLight call, which callers issue
// first when needed.
func (c *Client) SetACMode(ctx context.Context, elementID, mode string) error {
	action, ok := ACModeAction(mode)
	if !ok {
		return fmt.Errorf("unknown ac mode %q", mode)
	}
	return c.SendAction(ctx, elementID, action, nil)
}

// SetWaterHeaterTemperature sets the H2O target temperature in whole
// degrees.
func (c *Client) SetWaterHeaterTemperature(ctx context.Context, elementID string, temp float64) error {
	return c.SendAction(ctx, elementID, "settemperaturedesiredH2O", Args{
		0: {Value: strconv.Itoa(int(temp)), Type: "int"},
	})
}

// WaterHeaterModeAction translates a water heater operation mode to
// the panel action implementing it.
func WaterHeaterModeAction(mode string) (string, bool) {
	action, ok := waterHeaterModeActions[mode]
	return action, ok
}

// SetWaterHeaterMode sets the water heater operation mode (eco,
// standard, power, force).
func (c *Client) SetWaterHeaterMode(ctx context.Context, elementID, mode string) error {
	action, ok := WaterHeaterModeAction(mode)
	if !ok {
		return fmt.Errorf("unknown water heater mode %q", mode)
	}
	return c.SendAction(ctx, elementID, action, nil)
}

// PressButton fires a momentary button action (see the ActionPress
// constants).
func (c *Client) PressButton(ctx context.Context, elementID, action string) error {
	return c.SendAction(ctx, elementID, action, nil)
}

// SwitchLoad starts or stops a load management channel.
func (c *Client) SwitchLoad(ctx context.Context, elementID string, on bool) error {
	action := "Stoppwm"
	if on {
		action = "Runpwm"
	}
	return c.SendAction(ctx, elementID, action, nil)
}

// FanModeSpeed translates a named fan mode (auto, low, medium, high)
// to the panel's speed percentage. Unknown modes map to 0 (auto).
func FanModeSpeed(mode string) int {
	return fanModeSpeeds[mode]
}
