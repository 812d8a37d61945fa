package vnc

import "fmt"

// EventType identifies a remote desktop lifecycle event.
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventCredentialsRequired
	EventDesktopName
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventCredentialsRequired:
		return "credentialsrequired"
	case EventDesktopName:
		return "desktopname"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is emitted by a Client. Name is set for EventDesktopName, Clean and
// Err for EventDisconnect.
type Event struct {
	Type  EventType
	Name  string
	Clean bool
	Err   error
}
