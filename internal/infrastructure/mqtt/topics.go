package mqtt

import "fmt"

// Topic prefixes for the Cell Core MQTT namespace.
//
// Scheme: cellcore/{category}/{subject}
//   - state topics are retained (new subscribers get the latest value)
//   - event topics are fire-and-forget
const (
	// TopicPrefix is the base for all Cell Core topics.
	TopicPrefix = "cellcore"
)

// Topics provides builders for Cell Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// Status returns the availability topic for a cell instance.
//
// Example: cellcore/system/status/cellcore
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/system/status/%s", TopicPrefix, clientID)
}

// MachineState returns the retained state topic for a machine.
//
// Example: cellcore/state/gantry
func (Topics) MachineState(machine string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, machine)
}

// Event returns the event topic for a category.
//
// Example: cellcore/event/job
func (Topics) Event(category string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, category)
}
