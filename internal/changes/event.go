// Package changes delivers data-change notifications from the backing store
// to live views and coalesces the re-fetches they trigger.
package changes

import (
	"encoding/json"
	"fmt"
)

// Event describes a change to one row. An empty Collection means the source
// could only tell that something changed and listeners should re-fetch everything.
type Event struct {
	Collection string `json:"collection"`
	Op         string `json:"op"`
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
}

// Unknown reports whether the event carries no row information
func (e Event) Unknown() bool {
	return e.Collection == ""
}

// Affects reports whether a user's view may be stale after e
func (e Event) Affects(userID string) bool {
	return e.Unknown() || e.UserID == "" || e.UserID == userID
}

// ParsePayload decodes a LISTEN/NOTIFY payload
func ParsePayload(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("invalid change payload: %w", err)
	}
	return e, nil
}
