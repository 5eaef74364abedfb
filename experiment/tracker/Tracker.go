// Package tracker implements Trackers, which record the importance
// sampling diagnostics of V-trace computations and save them
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/vtrace/vtrace"
)

// Interface Tracker keeps track of the diagnostics of V-trace
// computations and saves the data after the run has finished. Since a
// Tracker is a vtrace.Logger, it can be set as the Logger of a
// vtrace.Config directly.
type Tracker interface {
	vtrace.Logger
	Save() error
}

// LoadData loads and returns the data saved by an ISStats Tracker
func LoadData(filename string) ([]vtrace.Diagnostics, error) {
	// Open file
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	// Create the decoder and the variable to store the data in
	dec := gob.NewDecoder(file)
	var data []vtrace.Diagnostics

	// Decode the data
	if err = dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %v", err)
	}

	return data, nil
}

// multi fans diagnostics out to a number of Trackers
type multi []Tracker

// Multi returns a Tracker which tracks diagnostics with each of the
// argument Trackers. Saving stops at the first Tracker that fails.
func Multi(trackers ...Tracker) Tracker {
	return multi(trackers)
}

// Log logs the diagnostics to each Tracker
func (m multi) Log(d vtrace.Diagnostics) {
	for _, t := range m {
		t.Log(d)
	}
}

// Save saves the data of each Tracker
func (m multi) Save() error {
	for i, t := range m {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: tracker %v: %v", i, err)
		}
	}
	return nil
}
