package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo"
	"github.com/donaldfilimon/ovo/internal/engine"
	"github.com/donaldfilimon/ovo/internal/env"
)

func parseTriple(s string) (ovo.TargetTriple, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) < 2 {
		return ovo.TargetTriple{}, xerrors.Errorf("cross triple %q: want arch-os[-abi]", s)
	}
	t := ovo.TargetTriple{Arch: parts[0], OS: parts[1]}
	if len(parts) == 3 {
		t.ABI = parts[2]
	}
	return t, nil
}

const cleanHelp = `ovo clean [-flags]

Remove build outputs and clear the build cache.
`

func cmdclean(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("clean", flag.ExitOnError)
	cfg, profile, cross := engineConfig(fset)
	fset.Usage = usage(fset, cleanHelp)
	fset.Parse(args)
	if err := applyProfile(cfg, *profile, *cross); err != nil {
		return err
	}
	e, err := engine.New(*cfg)
	if err != nil {
		return err
	}
	return e.Clean()
}

const graphHelp = `ovo graph [-flags] <source>…

Print the build graph for the given sources in execution order, without
running anything.

Example:
  % ovo graph src/main.cpp src/util.cppm
`

func cmdgraph(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("graph", flag.ExitOnError)
	cfg, profile, cross := engineConfig(fset)
	name := fset.String("name", "a.out", "target name")
	fset.Usage = usage(fset, graphHelp)
	fset.Parse(args)
	if fset.NArg() == 0 {
		return xerrors.Errorf("syntax: graph <source>…")
	}
	if err := applyProfile(cfg, *profile, *cross); err != nil {
		return err
	}
	cfg.DryRun = true

	e, err := engine.New(*cfg)
	if err != nil {
		return err
	}
	e.AddTarget(targetFromArgs(*name, fset.Args()))
	result, err := e.Build(ctx, []string{*name})
	if err != nil {
		return err
	}
	if !result.Success {
		return xerrors.Errorf("%s", strings.Join(result.Errors, "; "))
	}
	g := e.Graph()
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		fmt.Printf("%s (%s)\n", n.Name, n.Kind)
		for _, dep := range g.Dependencies(id) {
			d, err := g.Node(dep)
			if err != nil {
				continue
			}
			fmt.Printf("  needs %s\n", d.Name)
		}
	}
	return nil
}

const envHelp = `ovo env

Display ovo variables.
`

func printenv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("env", flag.ExitOnError)
	fset.Usage = usage(fset, envHelp)
	fset.Parse(args)
	fmt.Println("OVOROOT=" + env.OvoRoot)
	fmt.Println("OUTPUTDIR=" + env.DefaultOutputDir())
	fmt.Println("CACHEDIR=" + env.DefaultCacheDir())
	return nil
}

func printversion(ctx context.Context, args []string) error {
	fmt.Println("ovo " + ovo.Version)
	return nil
}
