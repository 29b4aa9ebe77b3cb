package monitor

import "time"

// Status is the last observed health of the dependencies.
type Status struct {
	Components map[string]bool `json:"components"`
	Online     bool            `json:"online"`
	Buffer     bool            `json:"buffer"`
	BufferSize int             `json:"buffer_size"`
	Buffered   map[string]int  `json:"buffered,omitempty"`
	LastCheck  time.Time       `json:"last_check"`
}
