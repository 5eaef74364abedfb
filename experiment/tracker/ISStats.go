package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/vtrace/vtrace"
)

// ISStats tracks and saves the importance sampling diagnostics of
// each V-trace computation in a run, in the order they were computed.
//
// The data is only written to disk when Save is called.
type ISStats struct {
	diagnostics []vtrace.Diagnostics
	filename    string
}

// NewISStats creates and returns a new *ISStats Tracker which saves to
// filename
func NewISStats(filename string) *ISStats {
	return &ISStats{filename: filename}
}

// Log tracks the diagnostics of a single V-trace computation
func (i *ISStats) Log(d vtrace.Diagnostics) {
	i.diagnostics = append(i.diagnostics, d)
}

// Len returns the number of diagnostics tracked
func (i *ISStats) Len() int {
	return len(i.diagnostics)
}

// Save saves the data tracked by the ISStats Tracker to disk.
func (i *ISStats) Save() error {
	// Open the file to save to
	file, err := os.Create(i.filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	// Encode and save the file
	en := gob.NewEncoder(file)
	if err = en.Encode(i.diagnostics); err != nil {
		return fmt.Errorf("save: could not encode diagnostics: %v", err)
	}
	return nil
}
