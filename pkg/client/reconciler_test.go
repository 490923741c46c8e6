package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/carelink/internal/bus"
	"github.com/nextlevelbuilder/carelink/internal/directory"
	"github.com/nextlevelbuilder/carelink/internal/httpapi"
	"github.com/nextlevelbuilder/carelink/internal/store"
	"github.com/nextlevelbuilder/carelink/pkg/protocol"
)

type fakeElderlyUI struct {
	mu        sync.Mutex
	prompts   []PendingRequest
	dismissed int
	errs      []error
}

func (f *fakeElderlyUI) ShowPrompt(req PendingRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, req)
}

func (f *fakeElderlyUI) DismissPrompt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed++
}

func (f *fakeElderlyUI) ShowError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func (f *fakeElderlyUI) lastPrompt(t *testing.T) PendingRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		t.Fatal("no prompt was shown")
	}
	return f.prompts[len(f.prompts)-1]
}

func TestElderlyReconcilerPromptFlow(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, bus.New())

	caregiver := NewDirectory(ts.URL, "c1", "")
	ui := &fakeElderlyUI{}
	rec := NewElderlyReconciler(NewDirectory(ts.URL, "e1", ""), ui)

	c, err := caregiver.CreateRequest(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}

	// A request notification triggers a refetch, which surfaces the prompt.
	rec.HandleMessage(ctx, Message{Event: &protocol.Event{Kind: protocol.EventConnectionRequest}})
	if rec.State() != PromptShowing {
		t.Fatalf("state = %v, want showing", rec.State())
	}
	if p := ui.lastPrompt(t); p.ID != c.ID || p.CaregiverFullName != "Carol M." {
		t.Fatalf("prompt = %+v", p)
	}

	// Accept resolves it server-side and returns to idle.
	rec.Accept(ctx)
	if rec.State() != PromptIdle {
		t.Fatalf("state after accept = %v, want idle", rec.State())
	}
	if ui.dismissed != 1 {
		t.Errorf("dismissed = %d, want 1", ui.dismissed)
	}

	list, err := caregiver.ElderlyList(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("connection not established: %v %v", list, err)
	}
}

func TestElderlyReconcilerQueuesPrompts(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, bus.New())

	c2Dir := NewDirectory(ts.URL, "c2", "")
	c3Dir := NewDirectory(ts.URL, "c3", "")
	ui := &fakeElderlyUI{}
	rec := NewElderlyReconciler(NewDirectory(ts.URL, "e1", ""), ui)

	first, _ := c2Dir.CreateRequest(ctx, "e1")
	second, _ := c3Dir.CreateRequest(ctx, "e1")

	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if p := ui.lastPrompt(t); p.ID != first.ID {
		t.Fatalf("first prompt = %+v, want request %s", p, first.ID)
	}

	// A second refresh while the prompt shows must not re-show or reorder.
	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(ui.prompts); n != 1 {
		t.Fatalf("prompt shown %d times, want 1", n)
	}

	rec.Dismiss(ctx)
	if p := ui.lastPrompt(t); p.ID != second.ID {
		t.Fatalf("second prompt = %+v, want request %s", p, second.ID)
	}
	rec.Dismiss(ctx)
	if rec.State() != PromptIdle {
		t.Fatalf("state = %v, want idle after queue drained", rec.State())
	}
}

func TestElderlyReconcilerResolveSurvivesConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	stores := store.NewMemoryStores()
	stores.Users.Put(ctx, store.UserData{ID: "e1", FullName: "Grace H."})
	router := httpapi.NewHandler(directory.NewService(stores, bus.New()), "").Router()

	approveEntered := make(chan struct{})
	approveRelease := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/approve") {
			router.ServeHTTP(w, r)
			return
		}
		// Commit the approval, then hold the response so a refresh can land
		// while the accept call is still in flight.
		buf := httptest.NewRecorder()
		router.ServeHTTP(buf, r)
		approveEntered <- struct{}{}
		<-approveRelease
		for k, vals := range buf.Header() {
			for _, v := range vals {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(buf.Code)
		w.Write(buf.Body.Bytes())
	}))
	t.Cleanup(ts.Close)

	first, err := NewDirectory(ts.URL, "c2", "").CreateRequest(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewDirectory(ts.URL, "c3", "").CreateRequest(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}

	ui := &fakeElderlyUI{}
	rec := NewElderlyReconciler(NewDirectory(ts.URL, "e1", ""), ui)
	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if p := ui.lastPrompt(t); p.ID != first.ID {
		t.Fatalf("first prompt = %+v, want request %s", p, first.ID)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec.Accept(ctx)
	}()

	<-approveEntered
	// The approval is already committed server-side, so this refresh sees
	// only the second request and drops the first from the queue.
	if err := rec.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	close(approveRelease)
	<-done

	// The second request must survive the accept and get its prompt.
	if rec.State() != PromptShowing {
		t.Fatalf("state = %v, want showing", rec.State())
	}
	if p := ui.lastPrompt(t); p.ID != second.ID {
		t.Fatalf("prompt after accept = %+v, want request %s", p, second.ID)
	}
}

func TestElderlyReconcilerDropsExternallyResolvedPrompt(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, bus.New())

	caregiver := NewDirectory(ts.URL, "c1", "")
	elderly := NewDirectory(ts.URL, "e1", "")
	ui := &fakeElderlyUI{}
	rec := NewElderlyReconciler(elderly, ui)

	c, _ := caregiver.CreateRequest(ctx, "e1")
	rec.Refresh(ctx)

	// The request gets resolved on another device while the prompt shows.
	if _, err := elderly.Reject(ctx, c.ID); err != nil {
		t.Fatal(err)
	}

	// Accepting the stale prompt drops it without surfacing an error.
	rec.Accept(ctx)
	if len(ui.errs) != 0 {
		t.Errorf("stale prompt surfaced errors: %v", ui.errs)
	}
	if rec.State() != PromptIdle {
		t.Errorf("state = %v, want idle", rec.State())
	}
}

func TestElderlyReconcilerSurfacesTransientFailure(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, bus.New())

	caregiver := NewDirectory(ts.URL, "c1", "")
	ui := &fakeElderlyUI{}
	rec := NewElderlyReconciler(NewDirectory(ts.URL, "e1", ""), ui)

	caregiver.CreateRequest(ctx, "e1")
	rec.Refresh(ctx)

	// Kill the server: the resolve call fails at the transport level.
	ts.Close()
	rec.Accept(ctx)

	if len(ui.errs) != 1 {
		t.Fatalf("errors surfaced = %d, want 1", len(ui.errs))
	}
	// The prompt is re-shown so the user can re-trigger; nothing was assumed.
	if n := len(ui.prompts); n != 2 {
		t.Errorf("prompt shown %d times, want 2 (original + re-show)", n)
	}
	if rec.State() != PromptShowing {
		t.Errorf("state = %v, want showing", rec.State())
	}
}

type fakeCaregiverUI struct {
	mu      sync.Mutex
	notices []string
	lists   [][]User
}

func (f *fakeCaregiverUI) Notice(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
}

func (f *fakeCaregiverUI) ElderlyListChanged(list []User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, list)
}

func TestCaregiverReconciler(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, bus.New())

	caregiver := NewDirectory(ts.URL, "c1", "")
	elderly := NewDirectory(ts.URL, "e1", "")

	ui := &fakeCaregiverUI{}
	sel := NewSelector(selectorPath(t))
	rec := NewCaregiverReconciler(caregiver, ui, sel)

	c, _ := caregiver.CreateRequest(ctx, "e1")
	elderly.Approve(ctx, c.ID)

	// Approval notice triggers the authoritative refetch and feeds the
	// selector.
	rec.HandleMessage(ctx, Message{Event: &protocol.Event{
		Kind:         protocol.EventConnectionApproved,
		ConnectionID: c.ID,
	}})

	if len(ui.notices) != 1 {
		t.Fatalf("notices = %v", ui.notices)
	}
	if len(ui.lists) != 1 || len(ui.lists[0]) != 1 || ui.lists[0][0].ID != "e1" {
		t.Fatalf("lists = %+v", ui.lists)
	}
	if u, ok := sel.Current(); !ok || u.ID != "e1" {
		t.Errorf("selector = (%q, %v), want (e1, true)", u.ID, ok)
	}

	// Rejection only notifies; the list is untouched.
	rec.HandleMessage(ctx, Message{Event: &protocol.Event{Kind: protocol.EventConnectionRejected}})
	if len(ui.notices) != 2 {
		t.Errorf("notices = %v", ui.notices)
	}
	if len(ui.lists) != 1 {
		t.Errorf("rejection refreshed the list: %d updates", len(ui.lists))
	}
}
