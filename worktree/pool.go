package worktree

import (
	"context"
	"sync"
	"time"

	"arbor/log"
)

// Creator is what the reservation pool needs from the lifecycle layer. It is
// an interface so the pool's slot discipline can be tested without spawning
// subprocesses.
type Creator interface {
	Create(ctx context.Context, opts CreateOptions) (*Descriptor, error)
	Remove(ctx context.Context, opts RemoveOptions) error
	Store() Store
}

type slotState int

const (
	slotFilling slotState = iota + 1
	slotReady
)

// reserveSlot is the single standby worktree for one project.
type reserveSlot struct {
	state       slotState
	desc        *Descriptor
	baseRef     BaseRef
	projectPath string
	// removeWhenDone marks a filling slot whose result should be destroyed
	// instead of published (the project was deleted mid-fill).
	removeWhenDone bool
}

// Claim is the result of taking a standby worktree. NeedsBaseRefSwitch tells
// the caller the standby was built against a different base than requested;
// reconciling that (rebase/reset) is the caller's decision, the pool never
// rewrites a claimed copy.
type Claim struct {
	Worktree           *Descriptor `json:"worktree"`
	BaseRefAtCreation  BaseRef     `json:"base_ref_at_creation"`
	NeedsBaseRefSwitch bool        `json:"needs_base_ref_switch"`
}

// Pool maintains at most one pre-created, unclaimed worktree per project so
// the interactive path never waits on git. Slots move
// absent -> filling -> ready -> absent (claim), or ready|filling -> absent on
// explicit removal; all transitions happen under one mutex.
type Pool struct {
	mu    sync.Mutex
	slots map[string]*reserveSlot
	mgr   Creator
	wg    sync.WaitGroup
}

// NewPool returns an empty reservation pool over the given lifecycle layer.
func NewPool(mgr Creator) *Pool {
	return &Pool{
		slots: make(map[string]*reserveSlot),
		mgr:   mgr,
	}
}

// EnsureReserve starts an asynchronous fill for the project unless a slot
// already exists (ready or in flight). Safe to call repeatedly.
func (p *Pool) EnsureReserve(projectID, projectPath, baseRef string) {
	p.mu.Lock()
	if _, exists := p.slots[projectID]; exists {
		p.mu.Unlock()
		return
	}
	slot := &reserveSlot{state: slotFilling, projectPath: projectPath}
	p.slots[projectID] = slot
	p.wg.Add(1)
	p.mu.Unlock()

	go p.fill(projectID, projectPath, baseRef, slot)
}

// fill creates the standby worktree and publishes the slot as ready.
func (p *Pool) fill(projectID, projectPath, baseRef string, slot *reserveSlot) {
	defer p.wg.Done()
	ctx := context.Background()

	desc, err := p.mgr.Create(ctx, CreateOptions{
		ProjectPath: projectPath,
		TaskName:    "reserved",
		ProjectID:   projectID,
		BaseRef:     baseRef,
	})
	if err != nil {
		log.WarningLog.Printf("reserve fill for %s failed: %v", projectID, err)
		p.dropSlot(projectID, slot)
		return
	}

	p.mu.Lock()
	if slot.removeWhenDone {
		delete(p.slots, projectID)
		p.mu.Unlock()
		if rerr := p.mgr.Remove(ctx, RemoveOptions{ProjectPath: projectPath, ID: desc.ID}); rerr != nil {
			log.WarningLog.Printf("failed to remove orphaned reserve for %s: %v", projectID, rerr)
		}
		return
	}
	// Record the ref creation actually used, which can differ from the
	// requested one when the fetch fell back to the default branch.
	slot.desc = desc
	slot.baseRef = desc.Base
	slot.state = slotReady
	p.mu.Unlock()
	log.InfoLog.Printf("reserve ready for %s: %s on %s", projectID, desc.Path, desc.Base.FullRef)
}

func (p *Pool) dropSlot(projectID string, slot *reserveSlot) {
	p.mu.Lock()
	if current, ok := p.slots[projectID]; ok && current == slot {
		delete(p.slots, projectID)
	}
	p.mu.Unlock()
}

// HasReserve reports whether a ready (claimable) slot exists for the project.
func (p *Pool) HasReserve(projectID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot, ok := p.slots[projectID]
	return ok && slot.state == slotReady
}

// ClaimReserve atomically takes the ready slot, relabels the standby with the
// caller's task name, and schedules a refill. Returns nil when no slot is
// ready; exactly one of two concurrent claims can win a given slot.
func (p *Pool) ClaimReserve(ctx context.Context, projectID, projectPath, taskName, baseRef string) *Claim {
	p.mu.Lock()
	slot, ok := p.slots[projectID]
	if !ok || slot.state != slotReady {
		p.mu.Unlock()
		return nil
	}
	delete(p.slots, projectID)
	p.mu.Unlock()

	d := slot.desc
	d.Name = taskName
	now := time.Now()
	d.LastActivity = &now
	p.mgr.Store().Put(d)

	claim := &Claim{Worktree: d, BaseRefAtCreation: slot.baseRef}
	if baseRef != "" {
		// String-level comparison only: the claim path must not pay
		// subprocess latency.
		if baseRef != slot.baseRef.FullRef && baseRef != slot.baseRef.Branch {
			claim.NeedsBaseRefSwitch = true
		}
	}

	p.EnsureReserve(projectID, projectPath, baseRef)
	return claim
}

// RemoveReserve destroys the project's slot: ready standbys are removed now,
// in-flight fills are flagged for destruction on completion.
func (p *Pool) RemoveReserve(ctx context.Context, projectID string) error {
	p.mu.Lock()
	slot, ok := p.slots[projectID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if slot.state == slotFilling {
		slot.removeWhenDone = true
		p.mu.Unlock()
		return nil
	}
	delete(p.slots, projectID)
	p.mu.Unlock()

	return p.mgr.Remove(ctx, RemoveOptions{ProjectPath: slot.projectPath, ID: slot.desc.ID})
}

// Close waits for in-flight fills so no fill goroutine outlives the owner.
func (p *Pool) Close() {
	p.wg.Wait()
}
