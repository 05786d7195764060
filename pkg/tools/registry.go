// Package tools provides the MCP tools that expose trip planning to agents.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/emission"
	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// Planner is the planning surface the tools call into.
type Planner interface {
	Plan(ctx context.Context, origin, destination string) (trip.Result, error)
	Evaluate(ctx context.Context, origin, destination string, mode emission.Mode) (trip.Evaluation, error)
	Model() *emission.Model
}

// ToolHandler handles one tool call.
type ToolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger   *slog.Logger
	factory  *core.ToolFactory
	planner  Planner
	resolver trip.Resolver
}

// NewRegistry creates a new tool registry
func NewRegistry(logger *slog.Logger, planner Planner, resolver trip.Resolver) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		factory:  core.NewToolFactory(),
		planner:  planner,
		resolver: resolver,
	}
}

// ToolDefinition pairs a tool with its handler.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     ToolHandler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	defs := []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version and build information of the ecoroute service",
		},
		{
			Name:        "plan_low_carbon_trip",
			Description: "Find the lowest-emission feasible way to travel between two places and compare it with driving. Parameters: origin (string), destination (string), mode (optional string)",
		},
		{
			Name:        "estimate_emissions",
			Description: "Estimate CO2 emissions with a 95% confidence interval for a distance. Parameters: distance_km (number), mode (optional string)",
		},
		{
			Name:        "approximate_transit",
			Description: "Approximate the public transport distance from a driving distance. Parameters: distance_km (number)",
		},
		{
			Name:        "geocode_address",
			Description: "Resolve an address, place name or coordinate string (decimal, DMS, MGRS) to latitude and longitude. Parameters: address (string)",
		},
	}

	for i := range defs {
		switch defs[i].Name {
		case "get_version":
			defs[i].Tool = r.factory.CreateBasicTool(defs[i].Name, defs[i].Description)
			defs[i].Handler = HandleGetVersion
		case "plan_low_carbon_trip":
			defs[i].Tool = r.factory.CreateTripTool(defs[i].Name, defs[i].Description)
			defs[i].Handler = r.HandlePlanTrip
		case "estimate_emissions":
			defs[i].Tool = r.factory.CreateDistanceTool(defs[i].Name, defs[i].Description, true)
			defs[i].Handler = r.HandleEstimateEmissions
		case "approximate_transit":
			defs[i].Tool = r.factory.CreateDistanceTool(defs[i].Name, defs[i].Description, false)
			defs[i].Handler = r.HandleApproximateTransit
		case "geocode_address":
			defs[i].Tool = r.factory.CreateAddressTool(defs[i].Name, defs[i].Description)
			defs[i].Handler = r.HandleGeocodeAddress
		}
	}
	return defs
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// wrapWithTracing wraps a tool handler with a span and request metrics.
func (r *Registry) wrapWithTracing(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)
		durationMs := duration.Milliseconds()

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, durationMs, resultSize)...)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", durationMs,
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
