package attendance

import (
	"fmt"
	"strconv"
	"strings"
)

// EventKind identifies what happened to a person.
type EventKind string

const (
	KindCheckIn  EventKind = "check-in"
	KindCheckOut EventKind = "check-out"
	// KindPoll is synthesized by viewers to force a full re-fetch. The server
	// never emits it.
	KindPoll EventKind = "poll"
)

// ParseEventKind accepts the wire names case-insensitively.
func ParseEventKind(raw string) (EventKind, error) {
	switch EventKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindCheckIn:
		return KindCheckIn, nil
	case KindCheckOut:
		return KindCheckOut, nil
	case KindPoll:
		return KindPoll, nil
	default:
		return "", fmt.Errorf("unknown event kind %q", raw)
	}
}

// ChangeEvent is the unit pushed to connected viewers after a transition is
// persisted. It lives only for a single delivery attempt.
type ChangeEvent struct {
	Kind        EventKind `json:"eventType"`
	CommunityID int       `json:"communityId"`
	PersonID    int       `json:"personId"`
}

// PollEvent builds the reconciliation trigger for a scope.
func PollEvent(communityID int) ChangeEvent {
	return ChangeEvent{Kind: KindPoll, CommunityID: communityID}
}

// FrameEventUpdate is the only frame type pushed over the event hub.
const FrameEventUpdate = "ReceiveEventUpdate"

// EventFrame is the JSON frame written to every hub session.
type EventFrame struct {
	Type string `json:"type"`
	ChangeEvent
}

// NewEventFrame wraps evt for the wire.
func NewEventFrame(evt ChangeEvent) EventFrame {
	return EventFrame{Type: FrameEventUpdate, ChangeEvent: evt}
}

const badgePrefix = "checkin:"

// BadgePayload is the text encoded in a person's badge QR code.
func BadgePayload(personID int) string {
	return fmt.Sprintf("%s%d", badgePrefix, personID)
}

// ParseBadgePayload extracts the person id from a scanned badge.
func ParseBadgePayload(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(raw), badgePrefix) {
		return 0, fmt.Errorf("not a badge payload: %q", raw)
	}
	id, err := strconv.Atoi(raw[len(badgePrefix):])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid person id in badge %q", raw)
	}
	return id, nil
}
