package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/donaldfilimon/ovo"
	"github.com/donaldfilimon/ovo/internal/trace"
)

var ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")

func usage(fset *flag.FlagSet, helpText string) func() {
	return func() {
		fmt.Fprintln(os.Stderr, helpText)
		fmt.Fprintf(os.Stderr, "Flags for ovo %s:\n", fset.Name())
		fset.PrintDefaults()
	}
}

func funcmain() error {
	flag.Parse()

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return err
		}
		trace.Sink(f)
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"build":   {cmdbuild},
		"clean":   {cmdclean},
		"graph":   {cmdgraph},
		"env":     {printenv},
		"version": {printversion},
	}

	args := flag.Args()
	verb := "build"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "ovo [-flags] <command> [-flags] <args>\n")
			fmt.Fprintln(os.Stderr)
			fmt.Fprintf(os.Stderr, "Commands:\n")
			fmt.Fprintf(os.Stderr, "\tbuild    - compile and link the given sources\n")
			fmt.Fprintf(os.Stderr, "\tgraph    - print the build graph in execution order\n")
			fmt.Fprintf(os.Stderr, "\tclean    - remove build outputs and clear the cache\n")
			fmt.Fprintf(os.Stderr, "\tenv      - display ovo variables\n")
			fmt.Fprintf(os.Stderr, "\tversion  - display the ovo version\n")
			os.Exit(2)
		}
		verb = args[0]
		args = []string{"-help"}
	}

	ctx, canc := ovo.InterruptibleContext()
	defer canc()
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: ovo <command> [options]\n")
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		return fmt.Errorf("%s: %v", verb, err)
	}
	return nil
}

func main() {
	if err := funcmain(); err != nil {
		log.Fatal(err)
	}
}
