package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cnosuke/link-preview/config"
	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// RunMCP - Serve the link_preview tool over MCP stdio
func RunMCP(cfg *config.Config, name string, version string, revision string) error {
	zap.S().Infow("starting MCP link preview server")

	// Format version string with revision if available
	versionString := version
	if revision != "" && revision != "xxx" {
		versionString = versionString + " (" + revision + ")"
	}

	svc, err := NewPreviewService(cfg)
	if err != nil {
		return err
	}

	hooks := &server.Hooks{}
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		zap.S().Errorw("MCP error occurred",
			"id", id,
			"method", method,
			"error", err,
		)
	})

	zap.S().Debugw("creating MCP server",
		"name", name,
		"version", versionString,
	)
	mcpServer := server.NewMCPServer(
		name,
		versionString,
		server.WithHooks(hooks),
	)

	RegisterLinkPreviewTool(mcpServer, svc, cfg)

	zap.S().Infow("starting MCP server")
	if err := server.ServeStdio(mcpServer); err != nil {
		zap.S().Errorw("failed to start server", "error", err)
		return errors.Wrap(err, "failed to start server")
	}

	// ServeStdio blocks until stdin is closed
	zap.S().Infow("server shutting down")
	return nil
}

// RegisterLinkPreviewTool - Register the link_preview tool
func RegisterLinkPreviewTool(mcpServer *server.MCPServer, p Previewer, cfg *config.Config) {
	zap.S().Debugw("registering link_preview tool")

	tool := mcp.NewTool("link_preview",
		mcp.WithDescription(fmt.Sprintf(
			"Fetches a web page and returns its link preview (title, description, image, site name) from Open Graph, Twitter Card and Dublin Core metadata. Times out after %d ms.",
			cfg.Preview.TimeoutMS)),
		mcp.WithString("url",
			mcp.Description("Absolute URL of the page to preview"),
			mcp.Required(),
		),
	)

	mcpServer.AddTool(tool, linkPreviewToolHandler(p))
}

func linkPreviewToolHandler(p Previewer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, _ := request.Params.Arguments["url"].(string)
		zap.S().Infow("executing link_preview", "url", url)

		result, err := p.Get(ctx, url)
		if err != nil {
			_, msg := errorStatus(err)
			zap.S().Errorw("failed to build link preview",
				"url", url,
				"error", err)
			return mcp.NewToolResultError(msg), nil
		}

		jsonResponse, err := json.Marshal(result)
		if err != nil {
			zap.S().Errorw("failed to marshal response to JSON", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response to JSON: %s", err.Error())), nil
		}

		return mcp.NewToolResultText(string(jsonResponse)), nil
	}
}
