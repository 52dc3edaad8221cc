package harness

import (
	"fmt"

	"github.com/google/uuid"
)

// Markers delimit the segments written to the side channel. The generator and
// the parser of one run must use the same value.
type Markers struct {
	OutputStart string
	OutputEnd   string
	TimeStart   string
	TimeEnd     string
	ErrorStart  string
	ErrorEnd    string
}

// DefaultMarkers returns the literal marker set of the side channel protocol.
func DefaultMarkers() Markers {
	return Markers{
		OutputStart: "{OUTPUT_START}",
		OutputEnd:   "{OUTPUT_END}",
		TimeStart:   "{TIME_START}",
		TimeEnd:     "{TIME_END}",
		ErrorStart:  "{ERROR_START}",
		ErrorEnd:    "{ERROR_END}",
	}
}

// TokenMarkers returns markers carrying token, e.g. {OUTPUT_START:token}.
// Submitted code cannot guess the token, so its output cannot forge a segment.
func TokenMarkers(token string) Markers {
	if token == "" {
		return DefaultMarkers()
	}
	mk := func(name string) string { return fmt.Sprintf("{%s:%s}", name, token) }
	return Markers{
		OutputStart: mk("OUTPUT_START"),
		OutputEnd:   mk("OUTPUT_END"),
		TimeStart:   mk("TIME_START"),
		TimeEnd:     mk("TIME_END"),
		ErrorStart:  mk("ERROR_START"),
		ErrorEnd:    mk("ERROR_END"),
	}
}

// NewRunMarkers returns fresh token markers when unique is set, the literal
// markers otherwise.
func NewRunMarkers(unique bool) Markers {
	if !unique {
		return DefaultMarkers()
	}
	return TokenMarkers(uuid.NewString())
}
