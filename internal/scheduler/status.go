package scheduler

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// The in-place status block is only rendered on a terminal; in pipes and CI
// logs the progress callback is the machine-readable channel.
var isTerminal = isatty.IsTerminal(os.Stdout.Fd())

func (s *Scheduler) refreshStatus() {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastStatus = time.Now()
	var maxLen int
	for _, line := range s.status {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	for _, line := range s.status {
		if len(line) < maxLen {
			// overwrite stale characters with whitespace, in every line
			// to clear artifacts
			line += strings.Repeat(" ", maxLen-len(line))
		}
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.status)) // restore cursor position
}

func (s *Scheduler) updateStatus(idx int, newStatus string) {
	if !isTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if idx >= len(s.status) {
		return
	}
	if diff := len(s.status[idx]) - len(newStatus); diff > 0 {
		newStatus += strings.Repeat(" ", diff) // overwrite stale characters
	}
	s.status[idx] = newStatus
	if time.Since(s.lastStatus) < 100*time.Millisecond {
		// printing status too frequently slows down the build
		return
	}
	s.lastStatus = time.Now()
	for _, line := range s.status {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.status)) // restore cursor position
}
