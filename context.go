package ovo

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// InterruptibleContext returns a context which is canceled when the program
// is interrupted (i.e. receiving SIGINT or SIGTERM). In-flight compiler
// processes started with this context are killed via exec.CommandContext.
//
// A second signal terminates the process immediately, which is useful in
// case draining the scheduler hangs.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		canc()
		<-sig
		os.Exit(1)
	}()
	return ctx, canc
}
