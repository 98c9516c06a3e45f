// Package robot provides interfaces and a client for JetBot motion control.
//
// The package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

// Motion describes one movement command.
type Motion struct {
	// Speed is the motor speed in [0, 1]. Zero selects DefaultSpeed.
	Speed float64

	// Duration is how long to run in seconds. Zero means run until the
	// next command or an explicit stop.
	Duration float64
}

// DefaultSpeed matches the backend's default motor speed.
const DefaultSpeed = 0.5

// Status is the backend's acknowledgement of a motion command.
type Status struct {
	Status   string   `json:"status"`
	Speed    float64  `json:"speed,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}
