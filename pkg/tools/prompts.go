package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/emission"
)

// TripPlanningPrompt explains how to use the tools together.
func TripPlanningPrompt() string {
	tokens := make([]string, len(emission.Modes))
	for i, m := range emission.Modes {
		tokens[i] = m.String()
	}
	return fmt.Sprintf(`You can plan low-carbon trips with these tools.

1. Call plan_low_carbon_trip with an origin and a destination. Addresses,
   decimal coordinates ("52.52, 13.405"), DMS and MGRS are all accepted.
2. The answer names best_mode, its distance and CO2 estimate with a 95%%
   confidence interval, and comparison_to_driving (null when driving is
   unavailable or emits nothing).
3. To look at a single mode pass mode, one of: %s.
4. estimate_emissions and approximate_transit work on a known distance
   without routing.

Public transport distances marked approximated were derived from the
driving route. With the default profile walking is limited to 2 km,
cycling to 5 km, and public transport needs at least 2 km. The active
limits are listed by the factors endpoint.`, strings.Join(tokens, ", "))
}

// RegisterPrompts registers the trip planning system prompt.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering trip planning prompt")
	prompt := mcp.NewPrompt("trip_planning_system",
		mcp.WithPromptDescription("System prompt describing the trip planning tools"),
	)
	mcpServer.AddPrompt(prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Trip Planning Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(TripPlanningPrompt())),
			},
		), nil
	})
}
