package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/logging"
	"github.com/flexiapi/flexiapi/pkg/services"
)

// TableToolDeps contains the dependencies of the row tools.
type TableToolDeps struct {
	Tables  services.TableService
	Methods services.CustomMethodRegistry
	Logger  *zap.Logger
}

// RegisterTableTools adds select_rows, insert_rows, update_rows, delete_rows
// and run_custom_method to the MCP server.
func RegisterTableTools(s *server.MCPServer, deps *TableToolDeps) {
	s.AddTool(selectRowsTool(), toolHandler(deps, "select_rows", func(ctx context.Context, args map[string]any) (any, error) {
		return deps.Tables.Select(ctx, args)
	}))

	s.AddTool(insertRowsTool(), toolHandler(deps, "insert_rows", func(ctx context.Context, args map[string]any) (any, error) {
		res, err := deps.Tables.Insert(ctx, args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"ids": res.IDs, "upsert": res.Upsert}, nil
	}))

	s.AddTool(updateRowsTool(), toolHandler(deps, "update_rows", func(ctx context.Context, args map[string]any) (any, error) {
		return deps.Tables.Update(ctx, args)
	}))

	s.AddTool(deleteRowsTool(), toolHandler(deps, "delete_rows", func(ctx context.Context, args map[string]any) (any, error) {
		return deps.Tables.Delete(ctx, args)
	}))

	s.AddTool(runCustomMethodTool(), toolHandler(deps, "run_custom_method", func(ctx context.Context, args map[string]any) (any, error) {
		name, _ := args["method"].(string)
		params, _ := args["params"].(map[string]any)
		result, err := deps.Methods.Run(ctx, name, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"method": name, "result": result}, nil
	}))
}

func selectRowsTool() mcp.Tool {
	return mcp.NewTool(
		"select_rows",
		mcp.WithDescription("Read rows from a whitelisted table. Conditions are AND-joined; results are paginated."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name (letters, digits, underscore)")),
		mcp.WithArray("columns", mcp.Description("Columns to return. Omit for all columns."), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("condition",
			mcp.Description("Filters as {field, operator, value}. Operators: =, !=, <, <=, >, >=, LIKE, IN, NOT IN. IN and NOT IN take an array value."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field":    map[string]any{"type": "string"},
					"operator": map[string]any{"type": "string"},
					"value":    map[string]any{},
				},
				"required": []string{"field"},
			}),
		),
		mcp.WithArray("order",
			mcp.Description("Sort keys as {column, direction}, direction ASC or DESC"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"column":    map[string]any{"type": "string"},
					"direction": map[string]any{"type": "string", "enum": []string{"ASC", "DESC"}},
				},
			}),
		),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Rows per page; capped by the server maximum")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func insertRowsTool() mcp.Tool {
	return mcp.NewTool(
		"insert_rows",
		mcp.WithDescription("Insert rows into a whitelisted table in one transaction. The first row fixes the column set. Returns the generated ids."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithArray("data", mcp.Required(), mcp.Description("Rows to insert, one object per row"), mcp.Items(map[string]any{"type": "object"})),
		mcp.WithBoolean("upsert", mcp.Description("Update existing rows on key conflict instead of failing")),
		mcp.WithArray("conflict", mcp.Description("Conflict target columns for upsert (required on PostgreSQL)"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func updateRowsTool() mcp.Tool {
	return mcp.NewTool(
		"update_rows",
		mcp.WithDescription("Update rows matching a single condition in one transaction. Returns the affected-row count."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithObject("where", mcp.Required(), mcp.Description("Condition as {field, operator, value}")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Column values to set")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func deleteRowsTool() mcp.Tool {
	return mcp.NewTool(
		"delete_rows",
		mcp.WithDescription("Delete rows whose column value is in a list, in one transaction. Returns the affected-row count."),
		mcp.WithString("table", mcp.Required(), mcp.Description("Table name")),
		mcp.WithString("column", mcp.Required(), mcp.Description("Column matched against values")),
		mcp.WithArray("values", mcp.Required(), mcp.Description("Values to delete")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to delete")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func runCustomMethodTool() mcp.Tool {
	return mcp.NewTool(
		"run_custom_method",
		mcp.WithDescription("Run a registered server-side method by name"),
		mcp.WithString("method", mcp.Required(), mcp.Description("Method name as listed by the /methods endpoint")),
		mcp.WithObject("params", mcp.Description("Method parameters")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// toolHandler adapts a service call to an MCP handler. Actionable failures
// become error results; system failures are returned as Go errors.
func toolHandler(deps *TableToolDeps, name string, op func(ctx context.Context, args map[string]any) (any, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := op(ctx, arguments(req))
		if err != nil {
			if errResult := ToolError(err); errResult != nil {
				deps.Logger.Debug("Tool call rejected",
					zap.String("tool", name),
					zap.String("error", logging.SanitizeError(err)))
				return errResult, nil
			}
			deps.Logger.Error("Tool call failed",
				zap.String("tool", name),
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return jsonResult(result)
	}
}

// arguments returns the tool arguments, or an empty mapping.
func arguments(req mcp.CallToolRequest) map[string]any {
	if args, ok := req.Params.Arguments.(map[string]any); ok && args != nil {
		return args
	}
	return map[string]any{}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
