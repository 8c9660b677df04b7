// Package main is the lspmux command-line client: it launches the
// langserver configured for a file, requests completions at a cursor
// position, and prints the candidates. With -run it instead executes a
// shell command through the output pump.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/lspmux/internal/config"
	"github.com/dshills/lspmux/internal/logging"
	"github.com/dshills/lspmux/internal/lsp"
	"github.com/dshills/lspmux/internal/lsp/wire"
	"github.com/dshills/lspmux/internal/runner"
	"github.com/dshills/lspmux/internal/tick"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	ConfigPath string
	LogLevel   string
	Line       int
	Col        int
	Timeout    time.Duration
	RunCommand string
	File       string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.LogLevel),
		Output: os.Stderr,
		Prefix: "lspmux",
	})

	if opts.RunCommand != "" {
		return runCommand(opts, log)
	}
	return runCompletion(opts, log)
}

// runCompletion launches (or reuses) the langserver for the file, asks for
// completions at the cursor, and prints one candidate per line.
func runCompletion(opts options, log *logging.Logger) int {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	ft, ok := cfg.ForPath(opts.File)
	if !ok || ft.ServerCommand == "" {
		fmt.Fprintf(os.Stderr, "Error: no langserver configured for %s\n", opts.File)
		return 1
	}

	doc, err := openDocument(opts.File, ft.LanguageID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	root := lsp.FindProjectRoot(opts.File)
	key, err := lsp.NewSessionKey(ft.ServerCommand, ft.ServerPort, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	registry := lsp.NewRegistry(log)
	sched := tick.NewScheduler(tick.DefaultInterval)

	session, err := registry.GetOrCreate(key, func() (*lsp.Session, error) {
		return lsp.Launch(key, registry, log, func(rootURI string) lsp.Codec {
			return wire.New(rootURI)
		})
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	sched.Add(session)
	session.Attach(doc)

	cursor := lsp.CursorPos{Line: opts.Line, Column: opts.Col}
	deadline := time.Now().Add(opts.Timeout)
	requested := false

	// The scheduler is driven synchronously so everything stays on this
	// goroutine.
	for time.Now().Before(deadline) {
		sched.Tick()

		switch {
		case doc.result != nil:
			for _, c := range doc.result.Candidates {
				fmt.Printf("%s\t%s\n", c.DisplayText, strings.ReplaceAll(c.ReplacementText, "\n", `\n`))
			}
			session.Detach(doc)
			drainShutdown(sched, registry, deadline)
			return 0

		case !requested && session.State() == lsp.Normal:
			if !session.RequestCompletion(doc, cursor, nil) {
				return 1
			}
			requested = true

		case session.State() == lsp.Exited:
			fmt.Fprintln(os.Stderr, "Error: langserver died before responding")
			return 1
		}

		time.Sleep(tick.DefaultInterval)
	}

	fmt.Fprintln(os.Stderr, "Error: timed out waiting for completions")
	return 1
}

// drainShutdown keeps ticking until the session finishes its shutdown
// handshake and leaves the registry, or the deadline passes.
func drainShutdown(sched *tick.Scheduler, registry *lsp.Registry, deadline time.Time) {
	for registry.Len() > 0 && time.Now().Before(deadline) {
		sched.Tick()
		time.Sleep(tick.DefaultInterval)
	}
}

// runCommand executes a shell command through the output pump, forwarding
// its output to stdout. Interrupts kill the command and drain its output.
func runCommand(opts options, log *logging.Logger) int {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	failed := false
	job, err := runner.Start(opts.RunCommand, wd, log, func(kind runner.Kind, text string) {
		switch kind {
		case runner.KindCommand:
			fmt.Printf("$ %s\n", text)
		case runner.KindStatus:
			fmt.Println(text)
			failed = failed || strings.HasPrefix(text, "The process failed")
		default:
			fmt.Println(text)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	job.CloseStdin()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-signals:
			job.Stop()
			return 1
		default:
		}
		if !job.OnTick() {
			if failed {
				return 1
			}
			return 0
		}
		time.Sleep(tick.DefaultInterval)
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.IntVar(&opts.Line, "line", 1, "Cursor line (1-based)")
	flag.IntVar(&opts.Col, "col", 0, "Cursor column (0-based)")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Time limit for the whole exchange")
	flag.StringVar(&opts.RunCommand, "run", "", "Run a shell command through the output pump instead")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lspmux - langserver session multiplexer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lspmux [options] file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lspmux -line 10 -col 4 main.go     Completions at main.go:10:4\n")
		fmt.Fprintf(os.Stderr, "  lspmux -run 'make test'            Pump a command's output\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("lspmux %s (%s)\n", version, commit)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	if opts.RunCommand == "" {
		if flag.NArg() != 1 {
			flag.Usage()
			os.Exit(1)
		}
		opts.File = flag.Arg(0)
	}
	return opts
}
