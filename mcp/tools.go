package mcp

import (
	"context"
	"encoding/json"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"arbor/service"
)

// envelopeResult renders any service response as a tool result. Failures
// inside the envelope become tool-level errors, never protocol errors.
func envelopeResult(v any, errMsg string) (*gomcp.CallToolResult, error) {
	if errMsg != "" {
		return gomcp.NewToolResultError(errMsg), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return gomcp.NewToolResultError("failed to marshal response: " + err.Error()), nil
	}
	return gomcp.NewToolResultText(string(data)), nil
}

func handleCreateWorktree(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectPath := req.GetString("project_path", "")
		taskName := req.GetString("task_name", "")
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}
		if taskName == "" {
			return gomcp.NewToolResultError("missing required parameter: task_name"), nil
		}

		resp := svc.Create(ctx, service.CreateRequest{
			ProjectPath: projectPath,
			TaskName:    taskName,
			ProjectID:   req.GetString("project_id", ""),
			BaseRef:     req.GetString("base_ref", ""),
		})
		return envelopeResult(resp, resp.Error)
	}
}

func handleListWorktrees(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectPath := req.GetString("project_path", "")
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}

		resp := svc.List(ctx, projectPath)
		return envelopeResult(resp, resp.Error)
	}
}

func handleRemoveWorktree(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectPath := req.GetString("project_path", "")
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}
		id := req.GetString("id", "")
		path := req.GetString("path", "")
		branch := req.GetString("branch", "")
		if id == "" && path == "" && branch == "" {
			return gomcp.NewToolResultError("one of id, path, or branch is required"), nil
		}

		resp := svc.Remove(ctx, service.RemoveRequest{
			ProjectPath: projectPath,
			ID:          id,
			Path:        path,
			Branch:      branch,
		})
		return envelopeResult(resp, resp.Error)
	}
}

func handleMergeWorktree(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectPath := req.GetString("project_path", "")
		id := req.GetString("id", "")
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}
		if id == "" {
			return gomcp.NewToolResultError("missing required parameter: id"), nil
		}

		resp := svc.Merge(ctx, projectPath, id)
		return envelopeResult(resp, resp.Error)
	}
}

func handleEnsureReserve(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectID := req.GetString("project_id", "")
		projectPath := req.GetString("project_path", "")
		if projectID == "" {
			return gomcp.NewToolResultError("missing required parameter: project_id"), nil
		}
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}

		resp := svc.EnsureReserve(projectID, projectPath, req.GetString("base_ref", ""))
		return envelopeResult(resp, resp.Error)
	}
}

func handleClaimReserve(svc *service.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		projectID := req.GetString("project_id", "")
		projectPath := req.GetString("project_path", "")
		taskName := req.GetString("task_name", "")
		if projectID == "" {
			return gomcp.NewToolResultError("missing required parameter: project_id"), nil
		}
		if projectPath == "" {
			return gomcp.NewToolResultError("missing required parameter: project_path"), nil
		}
		if taskName == "" {
			return gomcp.NewToolResultError("missing required parameter: task_name"), nil
		}

		resp := svc.ClaimReserve(ctx, projectID, projectPath, taskName, req.GetString("base_ref", ""))
		return envelopeResult(resp, resp.Error)
	}
}
