package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the business-model MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListPlans = mcp.NewTool("list_plans",
	mcp.WithDescription(
		"List the pricing plans of the current tenant and environment. "+
			"Returns each plan's id, type, visibility, currencies and active version."),
	mcp.WithString("plan_type",
		mcp.Description("Only plans metered this way"),
		mcp.Enum("Per User", "Per Product")),
	mcp.WithString("search",
		mcp.Description("Free-text search over plan names and descriptions")),
	mcp.WithBoolean("include_archived",
		mcp.Description("Include archived plans (default false)")),
	mcp.WithBoolean("visible_only",
		mcp.Description("Only plans visible to customers (default false)")),
)

var ToolGetPlan = mcp.NewTool("get_plan",
	mcp.WithDescription(
		"Show one plan in full: tiers with per-currency prices, features and notification credits."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID (e.g. 'plan_3f2a...')")),
)

var ToolListVersions = mcp.NewTool("list_versions",
	mcp.WithDescription(
		"List every pricing version of a plan, oldest first, marking the active one."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID")),
)

var ToolCalculatePrice = mcp.NewTool("calculate_price",
	mcp.WithDescription(
		"Quote what a plan costs for a number of users or products in a currency."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID")),
	mcp.WithNumber("quantity",
		mcp.Required(),
		mcp.Description("Number of users (Per User plans) or products (Per Product plans)")),
	mcp.WithString("currency",
		mcp.Description("ISO 4217 code (e.g. 'INR'). Defaults to the plan's default currency.")),
)

var ToolCheckPricing = mcp.NewTool("check_pricing",
	mcp.WithDescription(
		"Validate a plan's current pricing: tier ordering and overlap, "+
			"a price for every supported currency, non-negative amounts."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID")),
)

var ToolDuplicatePlan = mcp.NewTool("duplicate_plan",
	mcp.WithDescription(
		"Copy a plan, pricing included, under a new name. The copy starts hidden."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan to copy")),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Name of the copy")),
)

var ToolSetVisibility = mcp.NewTool("set_plan_visibility",
	mcp.WithDescription(
		"Show a plan to customers or hide it."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID")),
	mcp.WithBoolean("visible",
		mcp.Required(),
		mcp.Description("true to show, false to hide")),
)

var ToolArchivePlan = mcp.NewTool("archive_plan",
	mcp.WithDescription(
		"Archive a plan. Archived plans stop accepting subscribers and are hidden from lists."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID")),
)

var ToolActivateVersion = mcp.NewTool("activate_version",
	mcp.WithDescription(
		"Make an earlier or later pricing version the active one. Use list_versions to find version IDs."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan the version belongs to")),
	mcp.WithString("version_id",
		mcp.Required(),
		mcp.Description("The version to activate")),
)

var ToolSwitchEnvironment = mcp.NewTool("switch_environment",
	mcp.WithDescription(
		"Switch between live and test data. Everything loaded so far is discarded."),
	mcp.WithString("environment",
		mcp.Required(),
		mcp.Enum("live", "test")),
)
