// Command agent-assistant bridges an agent's MCP stdio channel to desktop
// front-ends connected over WebSocket.
//
// The agent launches it as an MCP server. JSON-RPC flows over stdin/stdout;
// logs go to a file unless log_stderr is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhubert/agent-assistant/bridge"
	"github.com/zhubert/agent-assistant/companion"
	"github.com/zhubert/agent-assistant/config"
	"github.com/zhubert/agent-assistant/logger"
	"github.com/zhubert/agent-assistant/mcp"
	"github.com/zhubert/agent-assistant/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agent-assistant: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default <config dir>/config.yaml)")
	debug := flag.Bool("debug", false, "enable debug logging")
	listen := flag.String("listen", "", "WebSocket listen address, overrides the config file")
	noCompanion := flag.Bool("no-companion", false, "do not launch the companion UI")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *debug {
		cfg.Debug = true
	}
	if *noCompanion {
		cfg.Companion.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bridge.New(bridge.WithConnectWait(cfg.ConnectWait.Duration))

	// Listen before reading stdin so a busy port fails startup.
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}
	srv := transport.NewServer(b, transport.WithPath(cfg.Path))
	serveErr := make(chan error, 1)
	go func() {
		err := srv.Serve(ctx, ln)
		if err != nil {
			log.Error("websocket server stopped", "error", err)
			stop()
		}
		serveErr <- err
	}()

	if cfg.Companion.Enabled {
		l := &companion.Launcher{
			Candidates: cfg.Companion.Candidates,
			Args:       cfg.Companion.Args,
		}
		if err := l.Launch(ctx); err != nil {
			log.Warn("companion not launched", "error", err)
		}
	}

	server := mcp.NewServer(os.Stdin, os.Stdout, b, mcp.WithRequestTimeout(cfg.RequestTimeout.Duration))
	runErr := server.Run(ctx)
	stop()

	if err := <-serveErr; err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("shut down")
	return nil
}

func initLogger(cfg *config.Config) error {
	logger.SetDebug(cfg.Debug)
	if cfg.LogStderr {
		logger.InitStderr()
		return nil
	}

	path := cfg.LogFile
	if path == "" {
		p, err := logger.DefaultLogPath()
		if err != nil {
			return err
		}
		path = p
	}
	return logger.Init(path)
}
