package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/kamalcharan/contractnest-ui-sub011/internal/tenant"
)

// NewMCPServer creates a configured MCP server with every plan tool registered.
func NewMCPServer(store PlanStore, scope *tenant.Provider) *server.MCPServer {
	s := server.NewMCPServer("business-model", "1.0.0")
	h := NewHandlers(store, scope)

	s.AddTool(ToolListPlans, h.HandleListPlans)
	s.AddTool(ToolGetPlan, h.HandleGetPlan)
	s.AddTool(ToolListVersions, h.HandleListVersions)
	s.AddTool(ToolCalculatePrice, h.HandleCalculatePrice)
	s.AddTool(ToolCheckPricing, h.HandleCheckPricing)
	s.AddTool(ToolDuplicatePlan, h.HandleDuplicatePlan)
	s.AddTool(ToolSetVisibility, h.HandleSetVisibility)
	s.AddTool(ToolArchivePlan, h.HandleArchivePlan)
	s.AddTool(ToolActivateVersion, h.HandleActivateVersion)
	s.AddTool(ToolSwitchEnvironment, h.HandleSwitchEnvironment)

	return s
}
