package scenario

import "sort"

// Info describes a registered scenario for API listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type factory func(Params) Scenario

// Registry maps scenario names to constructors. A registry is built
// once at startup and read-only afterwards.
type Registry struct {
	factories    map[string]factory
	descriptions map[string]string
}

// NewRegistry returns a registry holding every built-in scenario.
func NewRegistry() *Registry {
	r := &Registry{
		factories:    make(map[string]factory),
		descriptions: make(map[string]string),
	}

	r.register("normal", "Stable readings around the configured base values",
		func(p Params) Scenario { return NewNormal(p) })
	r.register("drift_up", "Temperature slowly rises, humidity slowly falls",
		func(p Params) Scenario { return NewDriftUp(p) })
	r.register("drift_down", "Temperature slowly falls, humidity slowly rises",
		func(p Params) Scenario { return NewDriftDown(p) })
	r.register("sine", "Periodic oscillation with per-sensor phase shift",
		func(p Params) Scenario { return NewSine(p) })
	r.register("offline", "All sensors stop answering",
		func(p Params) Scenario { return NewOffline(p) })
	r.register("intermittent", "Random polls fail, the rest behave normally",
		func(p Params) Scenario { return NewIntermittent(p) })
	r.register("timeout", "Slow link: frequent response timeouts",
		func(p Params) Scenario { return NewTimeout(p) })
	r.register("crc_error", "Noisy link: frequent checksum failures",
		func(p Params) Scenario { return NewCRCError(p) })
	r.register("partial_offline", "A fixed subset of sensors stops answering",
		func(p Params) Scenario { return NewPartialOffline(p) })
	r.register("daily_cycle", "Day/night temperature cycle following the wall clock",
		func(p Params) Scenario { return NewDailyCycle(p) })
	r.register("hvac_control", "Thermostat with hysteresis keeps temperature near a setpoint",
		func(p Params) Scenario { return NewHVACControl(p) })
	r.register("door_open", "Random door openings pull temperature toward outside",
		func(p Params) Scenario { return NewDoorOpen(p) })
	r.register("power_outage", "Periodic supply failures take all sensors down",
		func(p Params) Scenario { return NewPowerOutage(p) })
	r.register("sensor_failure", "Sensors break permanently one by one",
		func(p Params) Scenario { return NewSensorFailure(p) })

	return r
}

func (r *Registry) register(name, description string, f factory) {
	r.factories[name] = f
	r.descriptions[name] = description
}

// New builds a scenario instance by name. Unknown names fall back to
// the normal scenario so a misconfigured harness keeps producing data.
func (r *Registry) New(name string, p Params) Scenario {
	if f, ok := r.factories[name]; ok {
		return f(p)
	}
	return NewNormal(p)
}

// Has reports whether name is a registered scenario.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns all registered scenarios sorted by name.
func (r *Registry) List() []Info {
	infos := make([]Info, 0, len(r.factories))
	for name := range r.factories {
		infos = append(infos, Info{Name: name, Description: r.descriptions[name]})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
