package element

// Class identifies a panel element class.
//
// The values are the literal classId strings the panel reports in its
// scene documents. The set is closed: classes outside this enumeration
// are either ignored (see Ignored) or skipped with a log entry during
// discovery.
type Class string

// Panel element classes.
const (
	ClassLight          Class = "LightElement"
	ClassDimmableLight  Class = "DimmerableLightLedElement"
	ClassShutter        Class = "ShutterElement"
	ClassPowerSensor    Class = "TASensorElement"
	ClassThermostat     Class = "ThermostatElement"
	ClassAirConditioner Class = "ModbusSamsungAir2Element"
	ClassWaterHeater    Class = "ModbusSamsungElement"
	ClassInverter       Class = "DeliosMainUnitElement"
	ClassLoadManagement Class = "PowerMenagementElement"
	ClassStatus         Class = "StatusElement"
	ClassScenario       Class = "SwitchElement"
	ClassShutterControl Class = "UpDownSwitchElement"
)

// AllClasses returns every supported panel class.
func AllClasses() []Class {
	return []Class{
		ClassLight, ClassDimmableLight, ClassShutter, ClassPowerSensor,
		ClassThermostat, ClassAirConditioner, ClassWaterHeater,
		ClassInverter, ClassLoadManagement, ClassStatus,
		ClassScenario, ClassShutterControl,
	}
}

// Platform represents a presentation facet an element class maps to.
//
// Most classes project to exactly one platform; load management projects
// to both a sensor and a switch facet.
type Platform string

// Presentation platforms.
const (
	PlatformLight        Platform = "light"
	PlatformCover        Platform = "cover"
	PlatformSensor       Platform = "sensor"
	PlatformClimate      Platform = "climate"
	PlatformWaterHeater  Platform = "water_heater"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformButton       Platform = "button"
	PlatformSwitch       Platform = "switch"
)

// classLabels maps each class to its human-readable label.
var classLabels = map[Class]string{
	ClassLight:          "Light",
	ClassDimmableLight:  "Dimmable Light",
	ClassShutter:        "Shutter",
	ClassPowerSensor:    "Power Sensor",
	ClassThermostat:     "Thermostat",
	ClassAirConditioner: "Air Conditioner",
	ClassWaterHeater:    "Water Heater",
	ClassInverter:       "Delios Inverter",
	ClassLoadManagement: "Load Management",
	ClassStatus:         "Status",
	ClassScenario:       "Scenario",
	ClassShutterControl: "Shutter Control",
}

// classPlatforms is the one-to-many projection from class to platforms.
var classPlatforms = map[Class][]Platform{
	ClassLight:          {PlatformLight},
	ClassDimmableLight:  {PlatformLight},
	ClassShutter:        {PlatformCover},
	ClassPowerSensor:    {PlatformSensor},
	ClassThermostat:     {PlatformClimate},
	ClassAirConditioner: {PlatformClimate},
	ClassWaterHeater:    {PlatformWaterHeater},
	ClassInverter:       {PlatformSensor},
	ClassLoadManagement: {PlatformSensor, PlatformSwitch},
	ClassStatus:         {PlatformBinarySensor},
	ClassScenario:       {PlatformButton},
	ClassShutterControl: {PlatformButton},
}

// ignoredClasses are panel classes deliberately excluded from discovery.
// They represent UI-only widgets with no state or commands worth bridging.
var ignoredClasses = map[Class]struct{}{
	"WebPageElement":       {},
	"VirtualKeypadElement": {},
}

// Label returns the human-readable label for the class, or the raw class
// string if the class is not recognised.
func (c Class) Label() string {
	if label, ok := classLabels[c]; ok {
		return label
	}
	return string(c)
}

// Platforms returns the presentation platforms this class projects to.
// Unrecognised classes project to nothing.
func (c Class) Platforms() []Platform {
	return classPlatforms[c]
}

// Supported reports whether the class has a platform mapping and can be
// bridged. Ignored and unknown classes are not supported.
func (c Class) Supported() bool {
	_, ok := classPlatforms[c]
	return ok
}

// Ignored reports whether the class is deliberately excluded from
// discovery.
func (c Class) Ignored() bool {
	_, ok := ignoredClasses[c]
	return ok
}

// Dimmable reports whether the class supports brightness control.
func (c Class) Dimmable() bool {
	return c == ClassDimmableLight
}
