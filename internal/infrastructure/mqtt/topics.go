package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this service publishes or subscribes to.
//
// Property topics use the flat scheme servomount/{category}/{thing}/{property}.
const TopicPrefix = "servomount"

// Topics builds servomount MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("camera-mount", "servo0")
//	// Returns: "servomount/state/camera-mount/servo0"
type Topics struct{}

// State returns the retained topic carrying a property's accepted value.
//
// Example: servomount/state/camera-mount/servo0
func (Topics) State(thingID, property string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Segment(thingID), Segment(property))
}

// Command returns the topic a property write is requested on.
//
// Example: servomount/command/camera-mount/servo0
func (Topics) Command(thingID, property string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Segment(thingID), Segment(property))
}

// Ack returns the topic a command's outcome is published on.
//
// Example: servomount/ack/camera-mount/servo0
func (Topics) Ack(thingID, property string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Segment(thingID), Segment(property))
}

// Health returns the topic for a thing's periodic bus health.
//
// Example: servomount/health/camera-mount
func (Topics) Health(thingID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Segment(thingID))
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: servomount/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllCommands returns a pattern matching every command for one thing.
//
// Pattern: servomount/command/camera-mount/+
func (Topics) AllCommands(thingID string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Segment(thingID))
}

// PropertyFromTopic returns the last level of a topic, which is the property
// name for state, command, and ack topics.
func PropertyFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// segmentReplacer removes the characters MQTT reserves inside a topic level.
var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Segment makes s safe to use as a single topic level.
func Segment(s string) string {
	return segmentReplacer.Replace(s)
}
