package main

import (
	"arbor/config"
	"arbor/log"
	"arbor/mcp"
	"arbor/project"
	"arbor/service"
	"arbor/worktree"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	version     = "1.0.0"
	baseRefFlag string
	pathFlag    string
	branchFlag  string

	rootCmd = &cobra.Command{
		Use:   "arbor",
		Short: "Arbor - git worktree manager for parallel agent sessions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Initialize()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}

	createCmd = &cobra.Command{
		Use:   "create <task-name>",
		Short: "Create an isolated worktree for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.Create(context.Background(), service.CreateRequest{
				ProjectPath: env.projectPath,
				TaskName:    args[0],
				ProjectID:   env.projectID,
				BaseRef:     baseRefFlag,
			})
			return printEnvelope(resp)
		},
	}

	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "List the worktrees of the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.List(context.Background(), env.projectPath)
			return printEnvelope(resp)
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a worktree and delete its branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			var id string
			if len(args) > 0 {
				id = args[0]
			}
			if id == "" && pathFlag == "" && branchFlag == "" {
				return fmt.Errorf("one of an id argument, --path, or --branch is required")
			}

			resp := env.svc.Remove(context.Background(), service.RemoveRequest{
				ProjectPath: env.projectPath,
				ID:          id,
				Path:        pathFlag,
				Branch:      branchFlag,
			})
			return printEnvelope(resp)
		},
	}

	mergeCmd = &cobra.Command{
		Use:   "merge <id>",
		Short: "Merge a worktree's branch into the default branch, then remove it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.Merge(context.Background(), env.projectPath, args[0])
			return printEnvelope(resp)
		},
	}

	reserveCmd = &cobra.Command{
		Use:   "reserve",
		Short: "Manage the project's standby worktree",
	}

	reserveEnsureCmd = &cobra.Command{
		Use:   "ensure",
		Short: "Fill the reserve slot so the next create is instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.EnsureReserve(env.projectID, env.projectPath, baseRefFlag)
			return printEnvelope(resp)
		},
	}

	reserveClaimCmd = &cobra.Command{
		Use:   "claim <task-name>",
		Short: "Claim the reserved worktree for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.ClaimReserve(context.Background(), env.projectID, env.projectPath, args[0], baseRefFlag)
			return printEnvelope(resp)
		},
	}

	reserveStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Report whether a reserved worktree is ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.HasReserve(env.projectID)
			return printEnvelope(resp)
		},
	}

	reserveDropCmd = &cobra.Command{
		Use:   "drop",
		Short: "Remove the reserved worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			resp := env.svc.RemoveReserve(context.Background(), env.projectID)
			return printEnvelope(resp)
		},
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve worktree operations over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.close()

			return mcp.NewArborMCPServer(env.svc, version).Serve()
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return fmt.Errorf("failed to get config directory: %w", err)
			}
			configJson, _ := json.MarshalIndent(cfg, "", "  ")

			fmt.Printf("Config: %s\n%s\n", filepath.Join(configDir, config.ConfigFileName), configJson)

			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of arbor",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("arbor version %s\n", version)
		},
	}
)

// env holds the wired subsystem for one CLI invocation, rooted at the
// repository containing the current directory.
type env struct {
	svc         *service.Service
	pool        *worktree.Pool
	projectID   string
	projectPath string
}

func (e *env) close() {
	e.pool.Close()
}

func buildEnv() (*env, error) {
	currentDir, err := filepath.Abs(".")
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	projectPath, err := findRepoRoot(currentDir)
	if err != nil {
		return nil, err
	}

	cfg := config.LoadConfig()
	state := config.LoadState()
	projects, err := project.NewManager(project.NewStateStorage(state), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize project manager: %w", err)
	}

	proj, found := projects.GetProjectByPath(projectPath)
	if !found {
		proj, err = projects.AddProject(projectPath, filepath.Base(projectPath))
		if err != nil {
			return nil, fmt.Errorf("failed to register project: %w", err)
		}
	}

	gw := worktree.NewGateway()
	mgr := worktree.NewManager(gw, worktree.NewResolver(gw), worktree.NewMemoryStore(), projects)
	pool := worktree.NewPool(mgr)

	return &env{
		svc:         service.New(mgr, pool, cfg.ReserveEnabled),
		pool:        pool,
		projectID:   proj.ID,
		projectPath: projectPath,
	}, nil
}

// findRepoRoot walks up from dir to the first directory containing .git.
func findRepoRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("error: arbor must be run from within a git repository")
		}
		dir = parent
	}
}

func printEnvelope(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	createCmd.Flags().StringVarP(&baseRefFlag, "base", "b", "",
		"Base ref for the new branch (e.g. 'origin/main' or a local branch)")
	reserveEnsureCmd.Flags().StringVarP(&baseRefFlag, "base", "b", "", "Base ref for the reserved worktree")
	reserveClaimCmd.Flags().StringVarP(&baseRefFlag, "base", "b", "", "Base ref the task expects")
	rmCmd.Flags().StringVar(&pathFlag, "path", "", "Worktree path, for worktrees unknown to the registry")
	rmCmd.Flags().StringVar(&branchFlag, "branch", "", "Branch name used to locate the worktree")

	reserveCmd.AddCommand(reserveEnsureCmd)
	reserveCmd.AddCommand(reserveClaimCmd)
	reserveCmd.AddCommand(reserveStatusCmd)
	reserveCmd.AddCommand(reserveDropCmd)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(reserveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}
