package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

// Notification events are hints, not state: each reconciler reacts to a
// message by refetching the authoritative list from the directory, never by
// patching local state from the event payload.

// PromptState is the elderly reconciler's prompt lifecycle.
type PromptState int

const (
	PromptIdle PromptState = iota
	PromptShowing
	PromptResolving
)

// ElderlyUI is what the elderly reconciler drives. Implementations render the
// approval prompt however the device does.
type ElderlyUI interface {
	ShowPrompt(req PendingRequest)
	DismissPrompt()
	ShowError(err error)
}

// ElderlyReconciler turns notification messages and directory state into a
// serialized stream of approval prompts: at most one prompt is on screen, the
// rest queue behind it.
type ElderlyReconciler struct {
	dir *Directory
	ui  ElderlyUI

	mu    sync.Mutex
	state PromptState
	queue []PendingRequest
	// gen invalidates in-flight refreshes: results from an older generation
	// are discarded instead of clobbering newer state.
	gen uint64
}

func NewElderlyReconciler(dir *Directory, ui ElderlyUI) *ElderlyReconciler {
	return &ElderlyReconciler{dir: dir, ui: ui}
}

// State returns the current prompt state.
func (r *ElderlyReconciler) State() PromptState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleMessage processes one notification. A connection-request event (or
// any unparseable payload, which may have been one) triggers a refresh.
func (r *ElderlyReconciler) HandleMessage(ctx context.Context, m Message) {
	if m.Event != nil && m.Event.Kind != protocol.EventConnectionRequest {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		slog.Warn("pending refresh failed", "error", err)
	}
}

// Refresh refetches the pending list and folds it into the prompt queue.
// Requests already queued or currently showing keep their position; resolved
// ones are dropped.
func (r *ElderlyReconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	pending, err := r.dir.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		// A newer refresh or a resolution superseded this result.
		return nil
	}

	fresh := make(map[string]PendingRequest, len(pending))
	for _, p := range pending {
		fresh[p.ID] = p
	}

	// Keep existing order for requests that are still pending.
	merged := make([]PendingRequest, 0, len(pending))
	for _, q := range r.queue {
		if p, ok := fresh[q.ID]; ok {
			merged = append(merged, p)
			delete(fresh, q.ID)
		}
	}
	for _, p := range pending {
		if _, ok := fresh[p.ID]; ok {
			merged = append(merged, p)
		}
	}
	r.queue = merged

	r.advanceLocked()
	return nil
}

// Accept approves the prompt currently showing.
func (r *ElderlyReconciler) Accept(ctx context.Context) {
	r.resolveCurrent(ctx, r.dir.Approve)
}

// Dismiss rejects the prompt currently showing.
func (r *ElderlyReconciler) Dismiss(ctx context.Context) {
	r.resolveCurrent(ctx, r.dir.Reject)
}

func (r *ElderlyReconciler) resolveCurrent(ctx context.Context, fn func(context.Context, string) (Connection, error)) {
	r.mu.Lock()
	if r.state != PromptShowing || len(r.queue) == 0 {
		r.mu.Unlock()
		return
	}
	r.state = PromptResolving
	current := r.queue[0]
	r.mu.Unlock()

	_, err := fn(ctx, current.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	// Whatever refresh was in flight is now stale.
	r.gen++

	if err != nil && !errors.Is(err, ErrNotPending) && !errors.Is(err, ErrNotFound) {
		// Do not assume success. The prompt stays at the head of the queue
		// and is shown again so the user can re-trigger the action; there is
		// no automatic retry because resolving twice is not safe once the
		// request turns terminal.
		r.ui.ShowError(err)
		r.state = PromptIdle
		r.advanceLocked()
		return
	}
	if err != nil {
		// The request was resolved elsewhere; drop the stale prompt quietly.
		slog.Debug("prompt already resolved", "connection", current.ID)
	}

	// Remove the resolved request wherever it now sits. A refresh that landed
	// while the call was in flight may already have dropped or reordered it,
	// so dropping the head positionally could discard a different, still
	// pending prompt.
	for i, q := range r.queue {
		if q.ID == current.ID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	r.ui.DismissPrompt()
	r.state = PromptIdle
	r.advanceLocked()
}

// advanceLocked shows the head of the queue if nothing is on screen.
// Caller holds r.mu.
func (r *ElderlyReconciler) advanceLocked() {
	switch r.state {
	case PromptResolving:
		return
	case PromptShowing:
		if len(r.queue) == 0 {
			r.ui.DismissPrompt()
			r.state = PromptIdle
		}
		return
	}
	if len(r.queue) > 0 {
		r.state = PromptShowing
		r.ui.ShowPrompt(r.queue[0])
	}
}

// CaregiverUI is what the caregiver reconciler drives.
type CaregiverUI interface {
	Notice(text string)
	ElderlyListChanged(list []User)
}

// CaregiverReconciler reacts to approval and rejection notices. Approvals
// change the connected set, so they trigger a list refresh that also feeds
// the active-recipient selector; rejections only notify.
type CaregiverReconciler struct {
	dir      *Directory
	ui       CaregiverUI
	selector *Selector // optional
}

func NewCaregiverReconciler(dir *Directory, ui CaregiverUI, sel *Selector) *CaregiverReconciler {
	return &CaregiverReconciler{dir: dir, ui: ui, selector: sel}
}

// HandleMessage processes one notification.
func (r *CaregiverReconciler) HandleMessage(ctx context.Context, m Message) {
	if m.Event == nil {
		// Unparseable payload: the safe reaction is a refresh.
		if err := r.Refresh(ctx); err != nil {
			slog.Warn("elderly list refresh failed", "error", err)
		}
		return
	}

	switch m.Event.Kind {
	case protocol.EventConnectionApproved:
		r.ui.Notice("Your connection request was approved.")
		if err := r.Refresh(ctx); err != nil {
			slog.Warn("elderly list refresh failed", "error", err)
		}
	case protocol.EventConnectionRejected:
		r.ui.Notice("Your connection request was declined.")
	}
}

// Refresh refetches the connected elderly list, updates the UI, and
// re-resolves the active recipient.
func (r *CaregiverReconciler) Refresh(ctx context.Context) error {
	list, err := r.dir.ElderlyList(ctx)
	if err != nil {
		return fmt.Errorf("list elderly: %w", err)
	}
	if r.selector != nil {
		if err := r.selector.SetConnected(list); err != nil {
			slog.Warn("selector update failed", "error", err)
		}
	}
	r.ui.ElderlyListChanged(list)
	return nil
}
