package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-sheets/internal/registry"
	"github.com/sammcj/mcp-sheets/internal/tools"
	"github.com/sirupsen/logrus"
	ucli "github.com/urfave/cli/v3"
)

// serve registers every enabled tool and blocks on the chosen transport
func serve(ctx context.Context, cmd *ucli.Command, logger *logrus.Logger, transport string) error {
	mcpSrv := mcpserver.NewMCPServer("mcp-sheets", Version)

	for name, tool := range registry.GetEnabledTools() {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}
		mcpSrv.AddTool(tool.Definition(), toolHandler(name, transport, logger))
	}

	port := cmd.String("port")
	logger.WithField("transport", transport).Debug("Starting server")
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		logger.WithField("port", port).Debug("Starting SSE server")
		sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(cmd.String("base-url")+"/sse"))
		return sseServer.Start(":" + port)
	case "http":
		logger.WithField("port", port).Debug("Starting HTTP server")
		return startStreamableHTTPServer(ctx, cmd, mcpSrv, logger)
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

// toolHandler adapts a registered tool to the mcp-go handler signature and
// records failures in the tool error log
func toolHandler(name, transport string, logger *logrus.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Get fresh reference from registry to ensure consistency
		tool, ok := registry.GetTool(name)
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
		}

		result, err := tool.Execute(ctx, registry.GetLogger(), args)
		if err != nil {
			if transport != "stdio" {
				logger.WithError(err).Errorf("Tool execution failed: %s", name)
			}
			logToolError(name, args, "", err.Error(), transport)
			return nil, fmt.Errorf("tool execution failed: %w", err)
		}

		if result != nil && result.IsError {
			text := tools.ResultText(result)
			logToolError(name, args, kindFromResult(text), text, transport)
		}
		return result, nil
	}
}

func logToolError(name string, args map[string]any, kind, message, transport string) {
	if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil && errorLogger.IsEnabled() {
		errorLogger.LogToolError(name, args, kind, message, transport)
	}
}

// kindFromResult extracts the error kind from "Kind: message" result text
func kindFromResult(text string) string {
	kind, _, found := strings.Cut(text, ":")
	if !found || kind == "" || strings.ContainsAny(kind, " \t\n") {
		return ""
	}
	return kind
}

func startStreamableHTTPServer(ctx context.Context, cmd *ucli.Command, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	authToken := cmd.String("auth-token")
	endpointPath := cmd.String("endpoint-path")
	sessionTimeout := cmd.Duration("session-timeout")

	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
	}

	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(NewTimeoutSessionManager(sessionTimeout, logger)))
	}

	if authToken != "" {
		opts = append(opts, mcpserver.WithHTTPContextFunc(createAuthMiddleware(authToken, logger)))
		logger.Info("Token authentication enabled")
	}

	// Heartbeat at a quarter of the session timeout
	heartbeatInterval := 30 * time.Second
	if sessionTimeout > 0 {
		heartbeatInterval = sessionTimeout / 4
	}
	opts = append(opts,
		mcpserver.WithHeartbeatInterval(heartbeatInterval),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	)

	httpServer := mcpserver.NewStreamableHTTPServer(mcpServer, opts...)
	logger.Infof("Heartbeat interval: %v", heartbeatInterval)

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(":" + port); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}

// createAuthMiddleware creates an HTTP context function for token authentication
func createAuthMiddleware(expectedToken string, logger *logrus.Logger) mcpserver.HTTPContextFunc {
	return func(ctx context.Context, req *http.Request) context.Context {
		protocolVersion := req.Header.Get("MCP-Protocol-Version")
		switch {
		case protocolVersion == "":
			logger.Debug("No MCP-Protocol-Version header, assuming 2025-06-18")
		case !isValidProtocolVersion(protocolVersion):
			logger.Warnf("Unsupported MCP Protocol Version: %s", protocolVersion)
		default:
			logger.Debugf("MCP Protocol Version: %s", protocolVersion)
		}

		// DNS rebinding protection
		if origin := req.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Invalid Origin header: %s", origin)
		}

		if expectedToken == "" {
			return ctx
		}
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			logger.Warn("Request missing Authorization header")
			return ctx
		}
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			logger.Warn("Invalid authorization format, expected Bearer token")
			return ctx
		}
		if token != expectedToken {
			logger.Warn("Invalid authentication token")
			return ctx
		}
		logger.Debug("Request authenticated successfully")
		return ctx
	}
}

// isValidProtocolVersion checks if the MCP protocol version is supported
func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2024-11-05"}, version)
}

// isValidOrigin allows only local origins
func isValidOrigin(origin string) bool {
	for _, allowed := range []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	} {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") || strings.HasPrefix(origin, allowed+"/") {
			return true
		}
	}
	return false
}

// TimeoutSessionManager implements SessionIdManager, expiring sessions that
// have been idle for longer than the timeout
type TimeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func NewTimeoutSessionManager(timeout time.Duration, logger *logrus.Logger) *TimeoutSessionManager {
	return &TimeoutSessionManager{
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

func (t *TimeoutSessionManager) Generate() string {
	id := uuid.NewString()
	t.mu.Lock()
	t.lastSeen[id] = t.now()
	t.mu.Unlock()
	return id
}

// Validate reports whether the session has been terminated or has expired
func (t *TimeoutSessionManager) Validate(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("empty session ID")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	seen, ok := t.lastSeen[sessionID]
	if !ok {
		return false, fmt.Errorf("unknown session ID: %s", sessionID)
	}
	now := t.now()
	if now.Sub(seen) > t.timeout {
		delete(t.lastSeen, sessionID)
		t.logger.Debugf("Session expired: %s", sessionID)
		return true, nil
	}
	t.lastSeen[sessionID] = now
	return false, nil
}

func (t *TimeoutSessionManager) Terminate(sessionID string) (bool, error) {
	t.mu.Lock()
	delete(t.lastSeen, sessionID)
	t.mu.Unlock()
	t.logger.Debugf("Session terminated: %s", sessionID)
	return false, nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
