package model

import "time"

// Occurrence is a single concrete instance of a calendar event, after
// recurrence expansion and conversion into the display timezone.
type Occurrence struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`

	// InstanceKey identifies one occurrence of a recurring event; it is the
	// local start time in RFC3339.
	InstanceKey string `json:"instance_key"`

	Summary  string `json:"summary"`
	Location string `json:"location,omitempty"`

	AllDay bool `json:"all_day"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
