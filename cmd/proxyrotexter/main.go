// cmd/proxyrotexter/main.go - command line entry point
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valpere/ProxyRotexter/internal/config"
	"github.com/valpere/ProxyRotexter/internal/export"
	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/sources"
	"github.com/valpere/ProxyRotexter/internal/store"
	"github.com/valpere/ProxyRotexter/pkg/api"
	"gopkg.in/yaml.v3"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// main routes CLI arguments to the command handlers.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "template":
		err = templateCommand(os.Args[2:])
	case "fetch":
		err = fetchCommand(os.Args[2:])
	case "report":
		err = reportCommand(os.Args[2:])
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCommand assembles the engine and either issues the given requests
// through it or serves until interrupted.
func runCommand(args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: proxyrotexter run <config.yaml> [url ...]")
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return fmt.Errorf("config file required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.NewClientFromFile(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	targets := flags.Args()[1:]
	if len(targets) == 0 {
		fmt.Printf("proxyrotexter running with %d proxies; press Ctrl-C to stop\n",
			client.PoolStats().TotalProxies)
		<-ctx.Done()
		fmt.Println("shutting down")
		return nil
	}

	failed := 0
	for _, target := range targets {
		resp, rerr := client.Get(ctx, target, nil)
		if rerr != nil {
			fmt.Printf("%s  ERROR  %v\n", target, rerr)
			failed++
			continue
		}
		fmt.Printf("%s  %s  via %s  attempts=%d  %s\n",
			target, resp.Status, resp.ProxyURL, resp.Attempts, resp.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(targets))
	}
	return nil
}

// validateCommand loads a configuration and reports whether it is valid.
func validateCommand(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := flags.Bool("verbose", false, "print configuration details")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: proxyrotexter validate [--verbose] <config.yaml>")
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return fmt.Errorf("config file required")
	}

	cfg, err := config.LoadFromFile(flags.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("configuration '%s' is valid\n", flags.Arg(0))
	if *verbose {
		fmt.Printf("  name: %s\n", cfg.Name)
		fmt.Printf("  strategy: %s\n", cfg.Rotator.Strategy)
		fmt.Printf("  static proxies: %d\n", len(cfg.Proxies))
		if cfg.Sources != nil {
			fmt.Printf("  sources: %d\n", len(cfg.Sources.Sources))
		}
		if cfg.Store != nil {
			fmt.Printf("  store: %s\n", cfg.Store.Backend)
		}
	}
	return nil
}

// templateCommand prints a starting configuration.
func templateCommand(args []string) error {
	flags := flag.NewFlagSet("template", flag.ExitOnError)
	kind := flags.String("type", "basic", "template type: basic, fetch, or full")
	out := flags.String("o", "", "write to file instead of stdout")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: proxyrotexter template [--type basic|fetch|full] [-o file]")
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	template := config.GenerateTemplate(*kind)

	if *out != "" {
		return config.SaveToFile(&template, *out)
	}

	data, err := yaml.Marshal(&template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// fetchCommand runs the sources layer once, prints the candidates, and
// persists them when a store is configured.
func fetchCommand(args []string) error {
	flags := flag.NewFlagSet("fetch", flag.ExitOnError)
	quiet := flags.Bool("quiet", false, "print only the candidate count")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: proxyrotexter fetch [--quiet] <config.yaml>")
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return fmt.Errorf("config file required")
	}

	cfg, err := config.LoadFromFile(flags.Arg(0))
	if err != nil {
		return err
	}

	fetcherConfig, ok := cfg.BuildFetcherConfig()
	if !ok {
		return fmt.Errorf("no sources configured in %s", flags.Arg(0))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var renderer sources.Renderer
	if cfg.Sources.Browser {
		renderer = sources.NewBrowserRenderer(sources.DefaultBrowserConfig())
	}
	var fetcher proxy.CandidateFetcher = sources.NewFetcher(fetcherConfig, renderer)

	if storeConfig, ok := cfg.BuildStoreConfig(); ok {
		st, serr := store.New(ctx, storeConfig)
		if serr != nil {
			return fmt.Errorf("store: %w", serr)
		}
		defer st.Close()
		fetcher = sources.NewPersistentFetcher(fetcher, st)
	}

	entries, err := fetcher.FetchCandidates(ctx)
	if err != nil {
		return err
	}

	if !*quiet {
		for _, entry := range entries {
			line := entry.URL
			if entry.CountryCode != "" {
				line += "  " + entry.CountryCode
			}
			fmt.Println(line)
		}
	}
	fmt.Printf("%d candidates\n", len(entries))
	return nil
}

// reportCommand populates a pool from the configured store and sources
// and writes a snapshot report.
func reportCommand(args []string) error {
	flags := flag.NewFlagSet("report", flag.ExitOnError)
	out := flags.String("o", "report.json", "output path (.json, .csv, or .xlsx)")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: proxyrotexter report [-o file] <config.yaml>")
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return fmt.Errorf("config file required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.NewClientFromFile(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	if _, err := client.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: refresh failed: %v\n", err)
	}

	report := export.NewReport(client.Rotator())
	if err := export.WriteFile(*out, report); err != nil {
		return err
	}
	fmt.Printf("report written to %s (%d proxies)\n", *out, len(report.Proxies))
	return nil
}

// printUsage displays help information
func printUsage() {
	fmt.Println("ProxyRotexter - Client-Side Proxy Rotation Engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  proxyrotexter run <config.yaml> [url ...]   Run the engine; with URLs, request them and exit")
	fmt.Println("  proxyrotexter validate <config.yaml>        Validate a configuration file")
	fmt.Println("  proxyrotexter template [--type <type>]      Generate a configuration template")
	fmt.Println("  proxyrotexter fetch <config.yaml>           Fetch proxy candidates from the configured sources")
	fmt.Println("  proxyrotexter report [-o file] <config.yaml> Write a pool snapshot report")
	fmt.Println("  proxyrotexter version                       Show version information")
	fmt.Println("  proxyrotexter help                          Show this help message")
	fmt.Println()
	fmt.Println("Template types:")
	fmt.Println("  basic   Static proxy list (default)")
	fmt.Println("  fetch   Remote sources with a file store")
	fmt.Println("  full    Every section with commented defaults")
}

// printVersion displays version information
func printVersion() {
	fmt.Printf("ProxyRotexter %s\n", version)
	fmt.Printf("Build time: %s\n", buildTime)
	fmt.Printf("Git commit: %s\n", gitCommit)
}
