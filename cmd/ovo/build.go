package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo"
	"github.com/donaldfilimon/ovo/internal/engine"
)

const buildHelp = `ovo build [-flags] <source>…

Compile and link the given C/C++ sources into one target. Module interface
units (.cppm/.ixx) are compiled to BMIs in the object directory; sources named
here carry no import lists, so their consumers are not ordered after them.
Unchanged translation units are skipped via the build cache.

Example:
  % ovo build -name app -jobs 8 src/main.cpp src/util.cppm
`

// engineConfig assembles an engine.Config from the shared build/graph
// flags.
func engineConfig(fset *flag.FlagSet) (*engine.Config, *string, *string) {
	cfg := &engine.Config{Log: log.New(os.Stderr, "", log.LstdFlags)}
	fset.IntVar(&cfg.MaxJobs, "jobs", runtime.NumCPU(), "number of parallel compile jobs")
	fset.StringVar(&cfg.OutputDir, "output_dir", "", "build output directory (default $OVOROOT/ovo-out)")
	fset.StringVar(&cfg.CacheDir, "cache_dir", "", "build cache directory (default under output_dir)")
	fset.BoolVar(&cfg.Verbose, "verbose", false, "print every compiler invocation")
	fset.BoolVar(&cfg.KeepGoing, "keep_going", false, "continue building past the first failure")
	fset.BoolVar(&cfg.DryRun, "dry_run", false, "only print what would be built")
	fset.BoolVar(&cfg.ForceRebuild, "force", false, "rebuild regardless of the cache")
	fset.StringVar(&cfg.CC, "cc", "clang", "C compiler")
	fset.StringVar(&cfg.CXX, "cxx", "clang++", "C++ compiler")
	profile := fset.String("profile", "debug", "build profile: debug, release, release-safe, release-small")
	cross := fset.String("cross", "", "cross-compilation triple, e.g. aarch64-linux-gnu")
	return cfg, profile, cross
}

func applyProfile(cfg *engine.Config, profile, cross string) error {
	p, ok := ovo.ParseProfile(profile)
	if !ok {
		return xerrors.Errorf("unknown profile %q", profile)
	}
	cfg.Profile = p
	if cross != "" {
		triple, err := parseTriple(cross)
		if err != nil {
			return err
		}
		cfg.Target = &triple
	}
	return nil
}

func cmdbuild(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("build", flag.ExitOnError)
	cfg, profile, cross := engineConfig(fset)
	var (
		name            = fset.String("name", "a.out", "target name")
		compileCommands = fset.String("compile_commands", "", "also write a compile_commands.json to this path")
	)
	fset.Usage = usage(fset, buildHelp)
	fset.Parse(args)
	if fset.NArg() == 0 {
		return xerrors.Errorf("syntax: build <source>…")
	}
	if err := applyProfile(cfg, *profile, *cross); err != nil {
		return err
	}

	e, err := engine.New(*cfg)
	if err != nil {
		return err
	}
	e.AddTarget(targetFromArgs(*name, fset.Args()))

	result, err := e.Build(ctx, []string{*name})
	if err != nil {
		return err
	}
	if *compileCommands != "" {
		if err := e.WriteCompileCommands(*compileCommands); err != nil {
			return err
		}
	}
	for _, msg := range result.Errors {
		fmt.Fprintln(os.Stderr, msg)
	}
	fmt.Printf("%d built, %d cached, %d failed in %v\n",
		result.TargetsBuilt, result.TargetsCached, result.TargetsFailed, result.TotalTime)
	if !result.Success {
		return xerrors.Errorf("build failed")
	}
	return nil
}

// targetFromArgs builds a single executable target from command-line
// sources. The production project model arrives through the configuration
// parser instead.
func targetFromArgs(name string, sources []string) engine.Target {
	t := engine.Target{Name: name, Kind: engine.Executable}
	for _, src := range sources {
		t.Sources = append(t.Sources, engine.SourceFile{Path: src})
	}
	return t
}
