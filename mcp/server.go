package mcp

import (
	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"arbor/service"
)

const serverInstructions = "You are connected to Arbor, a git worktree manager for parallel agent sessions. " +
	"Each task gets its own worktree and branch so agents never step on each other's working copy. " +
	"Use create_worktree to start a task, list_worktrees to see what exists, and remove_worktree " +
	"when a task is done. For hot-start latency, ensure_reserve keeps a pre-created worktree warm " +
	"and claim_reserve hands it out instantly."

// ArborMCPServer exposes worktree operations over the Model Context Protocol.
type ArborMCPServer struct {
	server *mcpserver.MCPServer
	svc    *service.Service
}

// NewArborMCPServer creates an MCP server wired to the given service.
func NewArborMCPServer(svc *service.Service, version string) *ArborMCPServer {
	s := mcpserver.NewMCPServer(
		"arbor",
		version,
		mcpserver.WithInstructions(serverInstructions),
	)

	a := &ArborMCPServer{server: s, svc: svc}
	a.registerTools()
	return a
}

func (a *ArborMCPServer) registerTools() {
	createWorktree := gomcp.NewTool("create_worktree",
		gomcp.WithDescription(
			"Create an isolated git worktree for a task. Returns the worktree descriptor "+
				"including the path to use as the task's working directory and the branch name.",
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithString("task_name",
			gomcp.Required(),
			gomcp.Description("Human-readable task name; slugified into the branch and directory name."),
		),
		gomcp.WithString("project_id",
			gomcp.Description("Project identifier used for settings lookup and the reserve pool."),
		),
		gomcp.WithString("base_ref",
			gomcp.Description("Branch or remote ref to base the worktree on. Defaults to the project's configured base."),
		),
	)
	a.server.AddTool(createWorktree, handleCreateWorktree(a.svc))

	listWorktrees := gomcp.NewTool("list_worktrees",
		gomcp.WithDescription(
			"List the managed worktrees of a project, including ones recorded by other processes.",
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithReadOnlyHintAnnotation(true),
	)
	a.server.AddTool(listWorktrees, handleListWorktrees(a.svc))

	removeWorktree := gomcp.NewTool("remove_worktree",
		gomcp.WithDescription(
			"Remove a worktree and delete its branch. The project's primary repository is never removed.",
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithString("id",
			gomcp.Description("Descriptor id of the worktree to remove."),
		),
		gomcp.WithString("path",
			gomcp.Description("Worktree path, for worktrees unknown to the registry."),
		),
		gomcp.WithString("branch",
			gomcp.Description("Branch name, used to locate the worktree when no id or path is given."),
		),
	)
	a.server.AddTool(removeWorktree, handleRemoveWorktree(a.svc))

	mergeWorktree := gomcp.NewTool("merge_worktree",
		gomcp.WithDescription(
			"Merge a worktree's branch into the project's default branch, then remove the worktree. "+
				"Merge conflicts abort the operation and leave the worktree in place.",
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithString("id",
			gomcp.Required(),
			gomcp.Description("Descriptor id of the worktree to merge."),
		),
	)
	a.server.AddTool(mergeWorktree, handleMergeWorktree(a.svc))

	ensureReserve := gomcp.NewTool("ensure_reserve",
		gomcp.WithDescription(
			"Start filling the project's reserve slot so the next create_worktree is instant. Idempotent.",
		),
		gomcp.WithString("project_id",
			gomcp.Required(),
			gomcp.Description("Project identifier."),
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithString("base_ref",
			gomcp.Description("Ref to base the reserved worktree on."),
		),
	)
	a.server.AddTool(ensureReserve, handleEnsureReserve(a.svc))

	claimReserve := gomcp.NewTool("claim_reserve",
		gomcp.WithDescription(
			"Claim the project's reserved worktree for a task. Fails when no reserve is ready; "+
				"fall back to create_worktree in that case.",
		),
		gomcp.WithString("project_id",
			gomcp.Required(),
			gomcp.Description("Project identifier."),
		),
		gomcp.WithString("project_path",
			gomcp.Required(),
			gomcp.Description("Absolute path to the project's primary repository."),
		),
		gomcp.WithString("task_name",
			gomcp.Required(),
			gomcp.Description("Task name to relabel the claimed worktree with."),
		),
		gomcp.WithString("base_ref",
			gomcp.Description("Ref the task wants; a mismatch with the reserved base is flagged on the claim."),
		),
	)
	a.server.AddTool(claimReserve, handleClaimReserve(a.svc))
}

// Serve starts the MCP server using stdio transport.
func (a *ArborMCPServer) Serve() error {
	return mcpserver.ServeStdio(a.server)
}
