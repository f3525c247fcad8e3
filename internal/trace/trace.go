// Package trace records build execution as a Chrome trace event file
// (load in chrome://tracing). The scheduler emits one complete event per
// executed task, with the worker index as the thread id, so the file shows
// build parallelism and per-task duration at a glance.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = ioutil.Discard
)

// Sink writes all following task events as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	// Start the JSON Array Format; the closing ] is optional and skipped.
	w.Write([]byte{'['})
}

// Enable is a convenience for creating a sink file in
// $TMPDIR/ovo.traces/prefix.$PID.
func Enable(prefix string) error {
	fn := filepath.Join(os.TempDir(), "ovo.traces", fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

// PendingEvent is a started event; call Done when the task finishes.
type PendingEvent struct {
	Name           string      `json:"name"` // as displayed in Trace Viewer
	Categories     string      `json:"cat"`
	Type           string      `json:"ph"` // single-character event type
	ClockTimestamp uint64      `json:"ts"` // microseconds since trace start
	Duration       uint64      `json:"dur"`
	Pid            uint64      `json:"pid"`
	Tid            uint64      `json:"tid"` // worker index
	Args           interface{} `json:"args,omitempty"`

	started time.Time
}

// Done stamps the duration and writes the event to the sink.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.started) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// Task starts a complete event for one build task on the given worker. The
// node kind goes into the category column and the argv into the event args.
func Task(name, kind string, worker int, argv []string) *PendingEvent {
	return &PendingEvent{
		Name:           name,
		Categories:     kind,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Tid:            uint64(worker),
		Args:           map[string][]string{"argv": argv},
		started:        time.Now(),
	}
}
