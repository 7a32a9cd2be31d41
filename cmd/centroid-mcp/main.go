package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ironsheep/centroid-mcp/internal/config"
	"github.com/ironsheep/centroid-mcp/internal/logger"
	"github.com/ironsheep/centroid-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and serves MCP on stdin/stdout. It returns the process
// exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("centroid-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	versionPtr := fs.Bool("version", false, "Print version information")
	configPtr := fs.String("config", "", "Path to a YAML config file (default $"+config.EnvConfigPath+")")
	fs.Usage = func() { printUsage(fs, stdout) }

	// keep the bare "version" and "help" words working
	if len(args) > 0 {
		switch args[0] {
		case "version", "-v":
			args = []string{"--version"}
		case "help":
			args = []string{"--help"}
		}
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if *versionPtr {
		fmt.Fprintf(stdout, "centroid-mcp %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	}

	cfg, err := config.Load(config.Path(*configPtr))
	if err != nil {
		fmt.Fprintf(stderr, "centroid-mcp: %v\n", err)
		return 1
	}

	// stdout is for MCP protocol, logs go to stderr
	log, err := logger.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "centroid-mcp: %v\n", err)
		return 1
	}
	log.Debug().Str("version", Version).Str("build_time", BuildTime).
		Str("commit", GitCommit).Msg("starting")

	srv := server.New(cfg, log, Version)
	if err := srv.Run(); err != nil {
		log.Error().Err(err).Msg("server error")
		return 1
	}
	return 0
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "centroid-mcp - MCP server for sub-pixel centroiding of point sources")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: centroid-mcp [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=/path/config.yaml    Config file when --config is not given\n", config.EnvConfigPath)
	fmt.Fprintf(w, "  %s=debug            Override the configured log level\n", config.EnvLogLevel)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This server communicates via MCP protocol over stdin/stdout.")
	fmt.Fprintln(w, "Configure it in your MCP client (e.g., Claude Desktop).")
}
