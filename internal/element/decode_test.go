package element

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecode_UnknownClass(t *testing.T) {
	_, err := Decode(Class("MysteryElement"), NewSnapshot())
	if !errors.Is(err, ErrNoDecoder) {
		t.Errorf("Decode(MysteryElement) error = %v, want ErrNoDecoder", err)
	}
}

func TestDecode_AllSupportedClassesHaveDecoders(t *testing.T) {
	for _, class := range AllClasses() {
		if !HasDecoder(class) {
			t.Errorf("HasDecoder(%s) = false, want true", class)
		}
	}
}

func TestDecodeLight(t *testing.T) {
	tests := []struct {
		name  string
		build func(Snapshot)
		want  State
	}{
		{
			name: "on with brightness",
			build: func(s Snapshot) {
				s.SetFlag("isswitchedon")
				s.SetValue("getdimmer", "75")
			},
			want: State{"is_on": true, "brightness": 75},
		},
		{
			name: "mixed case keys",
			build: func(s Snapshot) {
				s.SetFlag("IsSwitchedOn")
				s.SetValue("GetDimmer", "40")
			},
			want: State{"is_on": true, "brightness": 40},
		},
		{
			name:  "off without dimmer",
			build: func(s Snapshot) {},
			want:  State{"is_on": false, "brightness": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot()
			tt.build(snap)

			got, err := Decode(ClassLight, snap)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeLight_DimmableSharesDecoder(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("isswitchedon")
	snap.SetValue("getdimmer", "60")

	plain, _ := Decode(ClassLight, snap)
	dimmable, _ := Decode(ClassDimmableLight, snap)

	if !reflect.DeepEqual(plain, dimmable) {
		t.Errorf("light decoders diverge: %v vs %v", plain, dimmable)
	}
}

func TestDecodeShutter(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("isgoingup")

	got, err := Decode(ClassShutter, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := State{"is_opening": true, "is_closing": false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestDecodePowerSensor(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("TA Value", "1342.5")

	got, err := Decode(ClassPowerSensor, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got["power"] != 1342.5 {
		t.Errorf("power = %v, want 1342.5", got["power"])
	}
}

func TestDecodeThermostat_TemperatureNormalisation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"tenths encoding above threshold", "250", 25.0},
		{"plain degrees below threshold", "25", 25.0},
		{"at threshold unchanged", "100", 100.0},
		{"just above threshold", "101", 10.1},
		{"missing", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot()
			if tt.raw != "" {
				snap.SetValue("temperature", tt.raw)
			}

			got, err := Decode(ClassThermostat, snap)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got["temperature"] != tt.want {
				t.Errorf("temperature = %v, want %v", got["temperature"], tt.want)
			}
		})
	}
}

func TestDecodeThermostat_Defaults(t *testing.T) {
	got, err := Decode(ClassThermostat, NewSnapshot())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got["season"] != "Winter" {
		t.Errorf("season = %v, want Winter", got["season"])
	}
	if got["t_mode"] != "Off" {
		t.Errorf("t_mode = %v, want Off", got["t_mode"])
	}
	if got["zone_active_winter"] != false {
		t.Errorf("zone_active_winter = %v, want false", got["zone_active_winter"])
	}
}

func TestDecodeThermostat_FullSnapshot(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("temperature", "215")
	snap.SetValue("tMin", "16")
	snap.SetValue("tMax", "24")
	snap.SetValue("speed", "2")
	snap.SetValue("season", "Summer")
	snap.SetValue("tMode", "Chrono")
	snap.SetValue("deltat", "0.5")
	snap.SetValue("calibration", "-0.3")
	snap.SetValue("defrost", "5")
	snap.SetValue("reactivity", "3")
	snap.SetFlag("zoneactivesummer")

	got, err := Decode(ClassThermostat, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := State{
		"temperature":        21.5,
		"t_min":              16.0,
		"t_max":              24.0,
		"speed":              2,
		"season":             "Summer",
		"t_mode":             "Chrono",
		"delta_t":            0.5,
		"calibration":        -0.3,
		"defrost":            5.0,
		"reactivity":         3,
		"zone_active_winter": false,
		"zone_active_summer": true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestDecodeAirConditioner_Modes(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  string
	}{
		{"heat", []string{"Get AC unit Mode is Heat"}, "heat"},
		{"cool", []string{"Get AC unit Mode is Cool"}, "cool"},
		{"auto", []string{"Get AC unit Mode is Auto"}, "auto"},
		{"dry", []string{"Get AC unit Mode is Dry"}, "dry"},
		{"fan", []string{"Get AC unit Mode is Fan"}, "fan_only"},
		{"first match wins", []string{"Get AC unit Mode is Cool", "Get AC unit Mode is Heat"}, "heat"},
		{"no flags while on", nil, "off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot()
			for _, flag := range tt.flags {
				snap.SetFlag(flag)
			}

			got, err := Decode(ClassAirConditioner, snap)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got["mode"] != tt.want {
				t.Errorf("mode = %v, want %v", got["mode"], tt.want)
			}
		})
	}
}

func TestDecodeAirConditioner_OffOverridesModeFlags(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("IsSwitchedOff")
	snap.SetFlag("Get AC unit Mode is Heat")

	got, err := Decode(ClassAirConditioner, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got["is_on"] != false {
		t.Errorf("is_on = %v, want false", got["is_on"])
	}
	if got["mode"] != "off" {
		t.Errorf("mode = %v, want off when switched off", got["mode"])
	}
}

func TestDecodeAirConditioner_Temperatures(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("Get AC unit Temperature Room", "22.5")
	snap.SetValue("Get AC unit Temperature Setted", "24")
	snap.SetValue("speed", "66")
	snap.SetValue("Get AC unit Error Code", "0")
	snap.SetFlag("IsConnected")

	got, err := Decode(ClassAirConditioner, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got["current_temp"] != 22.5 {
		t.Errorf("current_temp = %v, want 22.5", got["current_temp"])
	}
	if got["target_temp"] != 24.0 {
		t.Errorf("target_temp = %v, want 24", got["target_temp"])
	}
	if got["fan_speed"] != 66 {
		t.Errorf("fan_speed = %v, want 66", got["fan_speed"])
	}
	if got["is_connected"] != true {
		t.Errorf("is_connected = %v, want true", got["is_connected"])
	}
}

func TestDecodeAirConditioner_ParameterFallback(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("parameter", "AC unit Temperature Room:21.5:C;AC unit Temperature Setted:23:C")

	got, err := Decode(ClassAirConditioner, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got["current_temp"] != 21.5 {
		t.Errorf("current_temp = %v, want 21.5 from parameter fallback", got["current_temp"])
	}
	if got["target_temp"] != 23.0 {
		t.Errorf("target_temp = %v, want 23 from parameter fallback", got["target_temp"])
	}
}

func TestDecodeAirConditioner_DiscreteStatusBeatsFallback(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("Get AC unit Temperature Room", "20")
	snap.SetValue("parameter", "AC unit Temperature Room:99:C;AC unit Temperature Setted:23:C")

	got, err := Decode(ClassAirConditioner, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if got["current_temp"] != 20.0 {
		t.Errorf("current_temp = %v, want 20 (discrete status wins)", got["current_temp"])
	}
	if got["target_temp"] != 23.0 {
		t.Errorf("target_temp = %v, want 23 (fallback fills the gap)", got["target_temp"])
	}
}

func TestDecodeWaterHeater(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("isswitchedon")
	snap.SetFlag("IsConnected")
	snap.SetFlag("Get AC unit Mode is Heat")
	snap.SetValue("Get AC unit H2O Temperature Measured", "48.5")
	snap.SetValue("Get AC unit H2O Temperature Setted", "50")
	snap.SetValue("Get AC unit H2O Mode", "1")
	snap.SetValue("Get AC unit H2O Operation", "2")
	snap.SetValue("Get AC unit Water In Temperature", "40")
	snap.SetValue("Get AC unit Water Out Temperature", "45")
	snap.SetValue("Get AC unit Error Code", "0")

	got, err := Decode(ClassWaterHeater, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := State{
		"is_on":         true,
		"is_connected":  true,
		"is_heating":    true,
		"h2o_measured":  48.5,
		"h2o_setted":    50.0,
		"h2o_mode":      1,
		"h2o_operation": 2,
		"water_in":      40.0,
		"water_out":     45.0,
		"error_code":    0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestDecodeLoadManagement(t *testing.T) {
	snap := NewSnapshot()
	snap.SetValue("pwmValue", "2100")
	snap.SetValue("MaxWattCalculatedValue", "3000")
	snap.SetFlag("IsRun")

	got, err := Decode(ClassLoadManagement, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := State{
		"current_power": 2100.0,
		"max_power":     3000.0,
		"is_running":    true,
		"is_normal":     false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestDecodeStatus(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("statuson")

	got, err := Decode(ClassStatus, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got["is_on"] != true {
		t.Errorf("is_on = %v, want true", got["is_on"])
	}
}

func TestDecodeScenario(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("released")

	got, err := Decode(ClassScenario, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got["released"] != true {
		t.Errorf("released = %v, want true", got["released"])
	}
}

func TestDecodeShutterControl_Empty(t *testing.T) {
	snap := NewSnapshot()
	snap.SetFlag("whatever")

	got, err := Decode(ClassShutterControl, snap)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decode() = %v, want empty state", got)
	}
}

func TestParseColonParameters(t *testing.T) {
	got := parseColonParameters("a:1:W; b:2 ;;malformed")
	want := map[string]string{"a": "1", "b": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseColonParameters() = %v, want %v", got, want)
	}
}
