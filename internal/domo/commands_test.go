package domo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// commandRecorder captures the last command request for assertions.
type commandRecorder struct {
	server *httptest.Server
	client *Client
	count  int
	action string
	params url.Values
}

func newCommandRecorder(t *testing.T) *commandRecorder {
	t.Helper()

	rec := &commandRecorder{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.count++
		rec.action = r.URL.Query().Get("action")
		rec.params = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<bool>true</bool>`))
	}))
	t.Cleanup(rec.server.Close)
	rec.client = newTestClient(rec.server)
	return rec
}

func (r *commandRecorder) argValue(idx string) string {
	return r.params.Get("arguments[" + idx + "][value]")
}

func (r *commandRecorder) argType(idx string) string {
	return r.params.Get("arguments[" + idx + "][type]")
}

// TestSwitchLight verifies the on/off action selection.
func TestSwitchLight(t *testing.T) {
	tests := []struct {
		name string
		on   bool
		want string
	}{
		{"on", true, "switchon"},
		{"off", false, "switchoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.SwitchLight(context.Background(), "42", tt.on); err != nil {
				t.Fatalf("SwitchLight() error = %v", err)
			}
			if rec.action != tt.want {
				t.Errorf("action = %q, want %q", rec.action, tt.want)
			}
		})
	}
}

// TestSetDimmer verifies the brightness argument encoding.
func TestSetDimmer(t *testing.T) {
	rec := newCommandRecorder(t)

	if err := rec.client.SetDimmer(context.Background(), "42", 60); err != nil {
		t.Fatalf("SetDimmer() error = %v", err)
	}
	if rec.action != "setdimmer" {
		t.Errorf("action = %q, want setdimmer", rec.action)
	}
	if rec.argValue("0") != "60" || rec.argType("0") != "int" {
		t.Errorf("argument = %q/%q, want 60/int", rec.argValue("0"), rec.argType("0"))
	}
}

// TestCoverCommand verifies generic commands map to panel actions and
// panel-native actions pass through untouched.
func TestCoverCommand(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"open", "turnup"},
		{"close", "turndown"},
		{"stop", "stop"},
		{"turnup", "turnup"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.CoverCommand(context.Background(), "42", tt.command); err != nil {
				t.Fatalf("CoverCommand() error = %v", err)
			}
			if rec.action != tt.want {
				t.Errorf("action = %q, want %q", rec.action, tt.want)
			}
		})
	}
}

// TestThermostatCommands verifies the thermostat vocabulary, including
// the tenths-of-a-degree setpoint encoding.
func TestThermostatCommands(t *testing.T) {
	t.Run("mode", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetThermostatMode(context.Background(), "42", "TMax"); err != nil {
			t.Fatalf("SetThermostatMode() error = %v", err)
		}
		if rec.action != "setTMode" {
			t.Errorf("action = %q, want setTMode", rec.action)
		}
		if rec.argValue("0") != "TMax" || rec.argType("0") != "QString" {
			t.Errorf("argument = %q/%q, want TMax/QString", rec.argValue("0"), rec.argType("0"))
		}
	})

	t.Run("season", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetThermostatSeason(context.Background(), "42", "Summer"); err != nil {
			t.Fatalf("SetThermostatSeason() error = %v", err)
		}
		if rec.action != "setSeason" || rec.argValue("0") != "Summer" {
			t.Errorf("got %q %q, want setSeason Summer", rec.action, rec.argValue("0"))
		}
	})

	t.Run("max temp", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetThermostatMaxTemp(context.Background(), "42", 21.5); err != nil {
			t.Fatalf("SetThermostatMaxTemp() error = %v", err)
		}
		if rec.action != "setTMax" {
			t.Errorf("action = %q, want setTMax", rec.action)
		}
		if rec.argValue("0") != "215" || rec.argType("0") != "QString" {
			t.Errorf("argument = %q/%q, want 215/QString", rec.argValue("0"), rec.argType("0"))
		}
	})

	t.Run("min temp", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetThermostatMinTemp(context.Background(), "42", 18.0); err != nil {
			t.Fatalf("SetThermostatMinTemp() error = %v", err)
		}
		if rec.action != "setTMin" || rec.argValue("0") != "180" {
			t.Errorf("got %q %q, want setTMin 180", rec.action, rec.argValue("0"))
		}
	})

	t.Run("speed", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetThermostatSpeed(context.Background(), "42", 66); err != nil {
			t.Fatalf("SetThermostatSpeed() error = %v", err)
		}
		if rec.action != "setSpeed" || rec.argValue("0") != "66" || rec.argType("0") != "int" {
			t.Errorf("got %q %q/%q, want setSpeed 66/int", rec.action, rec.argValue("0"), rec.argType("0"))
		}
	})
}

// TestSetACMode verifies the climate mode to panel action mapping.
func TestSetACMode(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"heat", "setseasonwinter"},
		{"cool", "setseasonsummer"},
		{"auto", "Set AC unit Mode Auto"},
		{"dry", "Set AC unit Mode Dry"},
		{"fan_only", "Set AC unit Mode Fan"},
		{"off", "switchoff"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.SetACMode(context.Background(), "42", tt.mode); err != nil {
				t.Fatalf("SetACMode() error = %v", err)
			}
			if rec.action != tt.want {
				t.Errorf("action = %q, want %q", rec.action, tt.want)
			}
		})
	}
}

// TestSetACMode_Unknown verifies unknown modes are rejected without a
// request.
func TestSetACMode_Unknown(t *testing.T) {
	rec := newCommandRecorder(t)

	if err := rec.client.SetACMode(context.Background(), "42", "turbo"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if rec.count != 0 {
		t.Errorf("request count = %d, want 0", rec.count)
	}
}

// TestACTemperatureAndFan verifies whole-degree setpoints and the
// dimmer-based fan speed.
func TestACTemperatureAndFan(t *testing.T) {
	t.Run("temperature", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetACTemperature(context.Background(), "42", 22.7); err != nil {
			t.Fatalf("SetACTemperature() error = %v", err)
		}
		if rec.action != "settemperaturedesired" || rec.argValue("0") != "22" {
			t.Errorf("got %q %q, want settemperaturedesired 22", rec.action, rec.argValue("0"))
		}
	})

	t.Run("fan speed", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetACFanSpeed(context.Background(), "42", 66); err != nil {
			t.Fatalf("SetACFanSpeed() error = %v", err)
		}
		if rec.action != "setdimmer" || rec.argValue("0") != "66" {
			t.Errorf("got %q %q, want setdimmer 66", rec.action, rec.argValue("0"))
		}
	})
}

// TestWaterHeaterCommands verifies the H2O vocabulary.
func TestWaterHeaterCommands(t *testing.T) {
	t.Run("temperature", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetWaterHeaterTemperature(context.Background(), "42", 48.9); err != nil {
			t.Fatalf("SetWaterHeaterTemperature() error = %v", err)
		}
		if rec.action != "settemperaturedesiredH2O" || rec.argValue("0") != "48" {
			t.Errorf("got %q %q, want settemperaturedesiredH2O 48", rec.action, rec.argValue("0"))
		}
	})

	modes := []struct {
		mode string
		want string
	}{
		{"eco", "Set AC Temperature H2O Mode ECO"},
		{"standard", "Set AC Temperature H2O Mode STANDARD"},
		{"power", "Set AC Temperature H2O Mode POWER"},
		{"force", "Set AC Temperature H2O Mode FORCE"},
	}
	for _, tt := range modes {
		t.Run(tt.mode, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.SetWaterHeaterMode(context.Background(), "42", tt.mode); err != nil {
				t.Fatalf("SetWaterHeaterMode() error = %v", err)
			}
			if rec.action != tt.want {
				t.Errorf("action = %q, want %q", rec.action, tt.want)
			}
		})
	}

	t.Run("unknown mode", func(t *testing.T) {
		rec := newCommandRecorder(t)
		if err := rec.client.SetWaterHeaterMode(context.Background(), "42", "boost"); err == nil {
			t.Fatal("expected error for unknown mode")
		}
		if rec.count != 0 {
			t.Errorf("request count = %d, want 0", rec.count)
		}
	})
}

// TestPressButton verifies momentary button actions pass through.
func TestPressButton(t *testing.T) {
	actions := []string{ActionPressScenario, ActionPressUp, ActionPressDown}

	for _, action := range actions {
		t.Run(action, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.PressButton(context.Background(), "42", action); err != nil {
				t.Fatalf("PressButton() error = %v", err)
			}
			if rec.action != action {
				t.Errorf("action = %q, want %q", rec.action, action)
			}
		})
	}
}

// TestSwitchLoad verifies the load management run/stop actions.
func TestSwitchLoad(t *testing.T) {
	tests := []struct {
		name string
		on   bool
		want string
	}{
		{"run", true, "Runpwm"},
		{"stop", false, "Stoppwm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newCommandRecorder(t)
			if err := rec.client.SwitchLoad(context.Background(), "42", tt.on); err != nil {
				t.Fatalf("SwitchLoad() error = %v", err)
			}
			if rec.action != tt.want {
				t.Errorf("action = %q, want %q", rec.action, tt.want)
			}
		})
	}
}

// TestFanModeSpeed verifies named fan modes map to panel percentages.
func TestFanModeSpeed(t *testing.T) {
	tests := []struct {
		mode string
		want int
	}{
		{"auto", 0},
		{"low", 33},
		{"medium", 66},
		{"high", 100},
		{"unknown", 0},
	}

	for _, tt := range tests {
		if got := FanModeSpeed(tt.mode); got != tt.want {
			t.Errorf("FanModeSpeed(%q) = %d, want %d", tt.mode, got, tt.want)
		}
	}
}
