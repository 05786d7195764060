package core

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolFactory builds tool definitions with the shared parameter shapes.
type ToolFactory struct{}

// NewToolFactory creates a new tool factory
func NewToolFactory() *ToolFactory {
	return &ToolFactory{}
}

func modeDescription(prefix string) string {
	return fmt.Sprintf("%s. One of: %s", prefix, strings.Join(modeTokens(), ", "))
}

// CreateBasicTool creates a tool without parameters.
func (f *ToolFactory) CreateBasicTool(name, description string) mcp.Tool {
	return mcp.NewTool(name, mcp.WithDescription(description))
}

// CreateTripTool creates a tool taking an origin, a destination and an
// optional mode.
func (f *ToolFactory) CreateTripTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Start address, or coordinates as decimal degrees, DMS or MGRS"),
		),
		mcp.WithString("destination",
			mcp.Required(),
			mcp.Description("End address, or coordinates as decimal degrees, DMS or MGRS"),
		),
		mcp.WithString("mode",
			mcp.Description(modeDescription("Evaluate only this mode instead of choosing the best one")),
			mcp.Enum(modeTokens()...),
		),
	)
}

// CreateDistanceTool creates a tool taking a distance and, optionally, a mode.
func (f *ToolFactory) CreateDistanceTool(name, description string, withMode bool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithNumber("distance_km",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Travelled distance in kilometres (0 to %.0f)", MaxDistanceKm)),
			mcp.Min(0),
			mcp.Max(MaxDistanceKm),
		),
	}
	if withMode {
		opts = append(opts, mcp.WithString("mode",
			mcp.Description(modeDescription("Transport mode; all modes when omitted")),
			mcp.Enum(modeTokens()...),
		))
	}
	return mcp.NewTool(name, opts...)
}

// CreateAddressTool creates a tool taking a single address.
func (f *ToolFactory) CreateAddressTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("address",
			mcp.Required(),
			mcp.Description("Free-text address or place name"),
		),
	)
}
