// Package mcp exposes the tier classifier to AI agents as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/service"
)

// Server wraps an MCP SDK server whose tools call into the classification pipeline.
type Server struct {
	config    domain.MCPConfig
	pipeline  *service.Pipeline
	logger    *logrus.Logger
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(config domain.MCPConfig, pipeline *service.Pipeline, logger *logrus.Logger) *Server {
	if config.ServerName == "" {
		config.ServerName = "tier-classifier"
	}
	if config.ServerVersion == "" {
		config.ServerVersion = "1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}

	server := &Server{
		config:    config,
		pipeline:  pipeline,
		logger:    logger,
		mcpServer: mcp.NewServer(serverInfo, nil),
	}
	server.registerTools()
	return server
}

// registerTools registers the classification and reporting tools with the SDK.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolClassify,
		Description: "Classify a somatic variant into clinical actionability tiers under one or more guideline frameworks",
	}, s.handleClassifyVariantTier)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolDescribePathway,
		Description: "Show the evidence priority, weights and VAF thresholds used for an analysis type",
	}, s.handleDescribePathway)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolListFrameworks,
		Description: "List the guideline frameworks with their tiers and rules",
	}, s.handleListFrameworks)

	if s.pipeline.Store() != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolHistory,
			Description: "Return the stored tier history for a variant",
		}, s.handleTierHistory)
	}

	s.logger.WithField("server", s.config.ServerName).Debug("Registered MCP tools")
}

// Start serves the tools over stdin/stdout until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves the tools over transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"server":  s.config.ServerName,
		"version": s.config.ServerVersion,
	}).Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
