// Package service wraps the worktree manager and reservation pool behind a
// uniform response envelope. Callers (the CLI and the MCP server) never see a
// raw Go error from this layer; failures are reported inside the response.
package service

import (
	"context"

	"arbor/log"
	"arbor/worktree"
)

// Envelope is embedded in every response struct.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Envelope {
	return Envelope{Success: true}
}

func fail(err error) Envelope {
	return Envelope{Success: false, Error: err.Error()}
}

type Service struct {
	mgr            *worktree.Manager
	pool           *worktree.Pool
	reserveEnabled bool
}

// New wires a service. reserveEnabled gates the standby pool: when false,
// Create always takes the cold path and EnsureReserve is a no-op, but an
// existing standby can still be dropped through RemoveReserve.
func New(mgr *worktree.Manager, pool *worktree.Pool, reserveEnabled bool) *Service {
	return &Service{mgr: mgr, pool: pool, reserveEnabled: reserveEnabled}
}

type CreateRequest struct {
	ProjectPath string `json:"project_path"`
	TaskName    string `json:"task_name"`
	ProjectID   string `json:"project_id"`
	BaseRef     string `json:"base_ref,omitempty"`
}

type CreateResponse struct {
	Envelope
	Worktree *worktree.Descriptor `json:"worktree,omitempty"`
}

// Create makes a new worktree for a task. When a ready reserve slot exists
// for the project it is claimed instead, which skips all git subprocess work
// on the hot path.
func (s *Service) Create(ctx context.Context, req CreateRequest) CreateResponse {
	if s.reserveEnabled && s.pool != nil {
		if claim := s.pool.ClaimReserve(ctx, req.ProjectID, req.ProjectPath, req.TaskName, req.BaseRef); claim != nil {
			if claim.NeedsBaseRefSwitch {
				log.WarningLog.Printf("claimed reserve for %s was created from %s, requested %s", req.TaskName, claim.BaseRefAtCreation.FullRef, req.BaseRef)
			}
			return CreateResponse{Envelope: ok(), Worktree: claim.Worktree}
		}
	}
	desc, err := s.mgr.Create(ctx, worktree.CreateOptions{
		ProjectPath: req.ProjectPath,
		TaskName:    req.TaskName,
		ProjectID:   req.ProjectID,
		BaseRef:     req.BaseRef,
	})
	if err != nil {
		return CreateResponse{Envelope: fail(err)}
	}
	return CreateResponse{Envelope: ok(), Worktree: desc}
}

type ListResponse struct {
	Envelope
	Worktrees []*worktree.Descriptor `json:"worktrees"`
}

func (s *Service) List(ctx context.Context, projectPath string) ListResponse {
	descs, err := s.mgr.List(ctx, projectPath)
	if err != nil {
		return ListResponse{Envelope: fail(err)}
	}
	if descs == nil {
		descs = []*worktree.Descriptor{}
	}
	return ListResponse{Envelope: ok(), Worktrees: descs}
}

type RemoveRequest struct {
	ProjectPath string `json:"project_path"`
	ID          string `json:"id"`
	Path        string `json:"path,omitempty"`
	Branch      string `json:"branch,omitempty"`
}

type RemoveResponse struct {
	Envelope
}

func (s *Service) Remove(ctx context.Context, req RemoveRequest) RemoveResponse {
	err := s.mgr.Remove(ctx, worktree.RemoveOptions{
		ProjectPath: req.ProjectPath,
		ID:          req.ID,
		Path:        req.Path,
		Branch:      req.Branch,
	})
	if err != nil {
		return RemoveResponse{Envelope: fail(err)}
	}
	return RemoveResponse{Envelope: ok()}
}

type MergeResponse struct {
	Envelope
}

func (s *Service) Merge(ctx context.Context, projectPath, id string) MergeResponse {
	if err := s.mgr.Merge(ctx, projectPath, id); err != nil {
		return MergeResponse{Envelope: fail(err)}
	}
	return MergeResponse{Envelope: ok()}
}

type ReserveStatusResponse struct {
	Envelope
	Ready bool `json:"ready"`
}

func (s *Service) EnsureReserve(projectID, projectPath, baseRef string) ReserveStatusResponse {
	if !s.reserveEnabled {
		return ReserveStatusResponse{Envelope: ok(), Ready: false}
	}
	s.pool.EnsureReserve(projectID, projectPath, baseRef)
	return ReserveStatusResponse{Envelope: ok(), Ready: s.pool.HasReserve(projectID)}
}

func (s *Service) HasReserve(projectID string) ReserveStatusResponse {
	return ReserveStatusResponse{Envelope: ok(), Ready: s.pool.HasReserve(projectID)}
}

type ClaimResponse struct {
	Envelope
	Claim *worktree.Claim `json:"claim,omitempty"`
}

// ClaimReserve hands a ready reserved worktree to the caller. Unlike Create
// it does not fall back to a cold create; an empty pool is reported as a
// failed claim so the caller can decide.
func (s *Service) ClaimReserve(ctx context.Context, projectID, projectPath, taskName, baseRef string) ClaimResponse {
	claim := s.pool.ClaimReserve(ctx, projectID, projectPath, taskName, baseRef)
	if claim == nil {
		return ClaimResponse{Envelope: fail(worktree.ErrNoReserve)}
	}
	return ClaimResponse{Envelope: ok(), Claim: claim}
}

func (s *Service) RemoveReserve(ctx context.Context, projectID string) RemoveResponse {
	if err := s.pool.RemoveReserve(ctx, projectID); err != nil {
		return RemoveResponse{Envelope: fail(err)}
	}
	return RemoveResponse{Envelope: ok()}
}

type MultiRepoRequest struct {
	ProjectPath   string   `json:"project_path"`
	ProjectID     string   `json:"project_id"`
	TaskName      string   `json:"task_name"`
	SubRepos      []string `json:"sub_repos"`
	SelectedRepos []string `json:"selected_repos"`
	BaseRef       string   `json:"base_ref,omitempty"`
}

type MultiRepoResponse struct {
	Envelope
	Composite *worktree.Composite `json:"composite,omitempty"`
}

func (s *Service) CreateMultiRepo(ctx context.Context, req MultiRepoRequest) MultiRepoResponse {
	composite, err := s.mgr.CreateMultiRepo(ctx, worktree.MultiRepoOptions{
		ProjectPath:   req.ProjectPath,
		ProjectID:     req.ProjectID,
		TaskName:      req.TaskName,
		SubRepos:      req.SubRepos,
		SelectedRepos: req.SelectedRepos,
		BaseRef:       req.BaseRef,
	})
	if err != nil {
		return MultiRepoResponse{Envelope: fail(err)}
	}
	return MultiRepoResponse{Envelope: ok(), Composite: composite}
}

func (s *Service) RemoveMultiRepo(ctx context.Context, compositePath string, subRepos []string) RemoveResponse {
	if err := s.mgr.RemoveMultiRepo(ctx, compositePath, subRepos); err != nil {
		return RemoveResponse{Envelope: fail(err)}
	}
	return RemoveResponse{Envelope: ok()}
}
