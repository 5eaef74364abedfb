// Command vtrace computes V-trace targets and policy gradient
// advantages for a stream of time-major trajectory batches.
//
// Batches are read as JSON lines, with one object per line holding the
// nested arrays target_log_probs, behaviour_log_probs, discounts,
// rewards, values and bootstrap_value. For each batch, or each window
// of a batch if an unroll length is configured, one line holding the
// nested arrays vs and pg_advantages is written.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/samuelfneumann/vtrace/config"
	"github.com/samuelfneumann/vtrace/experiment/tracker"
	"github.com/samuelfneumann/vtrace/trajectory"
	"github.com/samuelfneumann/vtrace/utils/progressbar"
	"github.com/samuelfneumann/vtrace/vtrace"
	_ "modernc.org/sqlite"
)

func main() {
	configFile := flag.String("config", "", "YAML run configuration")
	input := flag.String("input", "", "input batches, - for standard input")
	output := flag.String("output", "", "output returns, - for standard "+
		"output")
	saveConfig := flag.String("save-config", "", "write the resolved "+
		"configuration to this file")
	quiet := flag.Bool("quiet", false, "do not display progress")
	flag.Parse()

	run := config.Default()
	if *configFile != "" {
		var err error
		if run, err = config.FromYaml(*configFile); err != nil {
			log.Fatalf("could not load configuration: %v", err)
		}
	}
	if *input != "" {
		run.Input = *input
	}
	if *output != "" {
		run.Output = *output
	}

	c, err := run.Config()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("run %v: %v", run.Nonce, c)

	if *saveConfig != "" {
		if err := writeConfig(run, *saveConfig); err != nil {
			log.Fatalf("could not save configuration: %v", err)
		}
	}

	// Read all batches
	in, closeIn, err := openInput(run.Input)
	if err != nil {
		log.Fatalf("could not open input: %v", err)
	}
	batches, err := trajectory.ReadAll(in)
	closeIn()
	if err != nil {
		log.Fatalf("could not read batches: %v", err)
	}

	// Create the trackers
	trackers, closeTrackers, err := newTrackers(run)
	if err != nil {
		log.Fatalf("could not create trackers: %v", err)
	}
	defer closeTrackers()
	var diagnostics tracker.Tracker
	if len(trackers) > 0 {
		diagnostics = tracker.Multi(trackers...)
		c.Logger = diagnostics
	}

	out, closeOut, err := openOutput(run.Output)
	if err != nil {
		log.Fatalf("could not open output: %v", err)
	}
	defer closeOut()
	enc := trajectory.NewEncoder(out)

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.New(os.Stderr, "batches", 40, len(batches))
	}

	for i, batch := range batches {
		windows := []trajectory.Batch{batch}
		if run.UnrollLength > 0 {
			if windows, err = batch.Split(run.UnrollLength); err != nil {
				log.Fatalf("batch %v: %v", i, err)
			}
		}

		for _, window := range windows {
			r, err := window.VTrace(c)
			if vtrace.IsShapeError(err) {
				log.Fatalf("batch %v: malformed batch: %v", i, err)
			} else if err != nil {
				log.Fatalf("batch %v: %v", i, err)
			}

			if err := enc.EncodeReturns(r); err != nil {
				log.Fatalf("batch %v: could not write returns: %v", i, err)
			}
		}

		if bar != nil {
			bar.Increment()
			bar.Display()
		}
	}
	if bar != nil {
		bar.Done()
	}

	if diagnostics != nil {
		if err := diagnostics.Save(); err != nil {
			log.Fatalf("could not save diagnostics: %v", err)
		}
	}
}

// newTrackers returns the Trackers configured by run and a function
// releasing their resources
func newTrackers(run *config.Run) ([]tracker.Tracker, func(), error) {
	var trackers []tracker.Tracker
	closeFn := func() {}

	if run.StatsFile != "" {
		trackers = append(trackers, tracker.NewISStats(run.StatsFile))
	}

	if run.StatsDB != "" {
		db, err := sql.Open("sqlite", run.StatsDB)
		if err != nil {
			return nil, nil, fmt.Errorf("newTrackers: %v", err)
		}
		t, err := tracker.NewSQLite(db, run.Nonce)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("newTrackers: %v", err)
		}
		trackers = append(trackers, t)
		closeFn = func() { db.Close() }
	}

	return trackers, closeFn, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

func writeConfig(run *config.Run, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return run.Save(file)
}
