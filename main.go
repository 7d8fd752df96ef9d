package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sammcj/mcp-sheets/internal/cli"
	"github.com/sammcj/mcp-sheets/internal/config"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
	ucli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-sheets/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
// Using atomic operations to prevent race conditions between signal handlers and cleanup
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Output is discarded until the transport is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)
	defer performCleanup(logger)

	app := newApp(logger)
	if err := app.Run(ctx, os.Args); err != nil {
		// Nothing may be written to stdout or stderr in stdio mode
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(logger *logrus.Logger) *ucli.Command {
	return &ucli.Command{
		Name:    "mcp-sheets",
		Usage:   "MCP server for reading, writing and formatting spreadsheets",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
			},
			&ucli.StringFlag{
				Name:  "port",
				Value: "18080",
				Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
			},
			&ucli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&ucli.StringFlag{
				Name:    "auth-token",
				Usage:   "Authentication token for Streamable HTTP transport (optional)",
				Sources: ucli.EnvVars("MCP_SHEETS_AUTH_TOKEN"),
			},
			&ucli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&ucli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Session timeout for Streamable HTTP transport",
			},
			&ucli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file (default: ~/.mcp-sheets/config.yaml)",
				Sources: ucli.EnvVars("MCP_SHEETS_CONFIG"),
			},
		},
		Before: func(ctx context.Context, cmd *ucli.Command) (context.Context, error) {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			config.SetCurrent(cfg)
			return ctx, nil
		},
		Commands: []*ucli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					fmt.Printf("mcp-sheets version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Print the effective configuration",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return printConfig(os.Stdout, config.Current())
				},
			},
			cliCommand(logger),
		},
		Action: func(ctx context.Context, cmd *ucli.Command) error {
			transport := cmd.String("transport")
			isStdioMode.Store(transport == "stdio")
			configureLogging(logger, config.Current().LogLevel, transport == "stdio")

			if err := tools.InitGlobalErrorLogger(logger); err != nil {
				logger.WithError(err).Debug("Failed to initialise tool error logger")
				if transport != "stdio" {
					logger.WithError(err).Warn("Failed to initialise tool error logger")
				}
			}

			if transport != "stdio" {
				logger.Infof("Starting mcp-sheets version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
			}
			return serve(ctx, cmd, logger, transport)
		},
	}
}

// cliCommand runs tools directly from the command line
func cliCommand(logger *logrus.Logger) *ucli.Command {
	runner := func(cmd *ucli.Command) *cli.Runner {
		// Tool logs go to stderr so stdout carries only results
		logger.SetOutput(os.Stderr)
		if level, err := logrus.ParseLevel(config.Current().LogLevel); err == nil {
			logger.SetLevel(level)
		}
		return cli.NewRunner(logger, os.Stdout, cli.OutputFormat(cmd.String("output")))
	}

	return &ucli.Command{
		Name:  "cli",
		Usage: "Run tools directly without starting a server",
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   string(cli.OutputText),
				Usage:   "Output format (text or json)",
			},
		},
		Commands: []*ucli.Command{
			{
				Name:  "list",
				Usage: "List available tools",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					return runner(cmd).ListTools()
				},
			},
			{
				Name:      "help",
				Usage:     "Show a tool's parameters",
				ArgsUsage: "<tool>",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: mcp-sheets cli help <tool>")
					}
					return runner(cmd).HelpTool(cmd.Args().First())
				},
			},
			{
				Name:            "run",
				Usage:           "Run a tool, e.g. run spreadsheet --function=list_sheets --file-path=book.xlsx",
				ArgsUsage:       "<tool> [--param=value ...] ['{\"json\": \"args\"}']",
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					if cmd.NArg() < 1 {
						return fmt.Errorf("usage: mcp-sheets cli run <tool> [args...]")
					}
					args := cmd.Args().Slice()
					return runner(cmd).RunTool(ctx, args[0], args[1:])
				},
			},
		},
	}
}

// configureLogging sends logs to ~/.mcp-sheets/logs/mcp-sheets.log. When the
// file cannot be opened, logs are discarded in stdio mode and go to stderr otherwise.
func configureLogging(logger *logrus.Logger, levelName string, stdio bool) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.WarnLevel
	}
	// stdio mode logs at warn level at most verbose
	if stdio && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}

	var out io.Writer = os.Stderr
	if stdio {
		out = io.Discard
	}
	if file, err := openLogFile(); err == nil {
		debugLogFile.Store(file)
		out = file
	}

	logger.SetOutput(out)
	logrus.SetOutput(out)
	logger.SetLevel(level)
	logrus.SetLevel(level)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

func openLogFile() (*os.File, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	logDir := filepath.Join(homeDir, ".mcp-sheets", "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(logDir, "mcp-sheets.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// printConfig writes cfg as YAML
func printConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	// Closed silently: in stdio mode nothing may be written
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}

	if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil {
		if err := errorLogger.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close tool error logger")
		}
	}
}
