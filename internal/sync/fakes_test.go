package sync

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"db-local-sync/internal/confirm"
	"db-local-sync/internal/database"
	"db-local-sync/internal/notify"
	"db-local-sync/internal/snapshot"
)

var (
	localID  = database.Identity{Name: "local", Host: "127.0.0.1", Port: 3306, Database: "shop"}
	remoteID = database.Identity{Name: "remote", Host: "db.example.com", Port: 3306, Database: "shop"}
)

// fakeSource serves snapshots per identity name and records every fetch.
type fakeSource struct {
	mu    sync.Mutex
	snaps map[string]*snapshot.Snapshot
	errs  map[string]error
	calls []string
}

func newFakeSource(local, remote *snapshot.Snapshot) *fakeSource {
	return &fakeSource{
		snaps: map[string]*snapshot.Snapshot{"local": local, "remote": remote},
		errs:  map[string]error{},
	}
}

func (f *fakeSource) Fetch(ctx context.Context, id database.Identity) (*snapshot.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id.Name)
	if err := f.errs[id.Name]; err != nil {
		return nil, err
	}
	return f.snaps[id.Name], nil
}

func (f *fakeSource) set(name string, s *snapshot.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[name] = s
}

func (f *fakeSource) fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeSource) fetches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeMutator applies replaces into a fakeSource so tests can re-fetch.
type fakeMutator struct {
	mu         sync.Mutex
	source     *fakeSource
	backupErr  error
	replaceErr error
	relaxErr   error
	calls      []string

	// replaceHook, if set, runs before Replace applies anything.
	replaceHook func(ctx context.Context) error
}

func (m *fakeMutator) Backup(ctx context.Context, source database.Identity, backupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "backup:"+backupName)
	return m.backupErr
}

func (m *fakeMutator) Replace(ctx context.Context, target database.Identity, snap *snapshot.Snapshot) error {
	m.mu.Lock()
	m.calls = append(m.calls, "replace:"+target.Name)
	err := m.replaceErr
	hook := m.replaceHook
	m.mu.Unlock()

	if hook != nil && err == nil {
		err = hook(ctx)
	}
	if err != nil {
		return err
	}
	if m.source != nil {
		m.source.set(target.Name, cloneSnapshot(snap))
	}
	return nil
}

func (m *fakeMutator) RelaxValidation(ctx context.Context, target database.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "relax:"+target.Name)
	return m.relaxErr
}

func (m *fakeMutator) mutations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// fakeGate hands out one channel per prompt; tests decide explicitly.
type fakeGate struct {
	mu      sync.Mutex
	prompts []confirm.Prompt
	chans   []chan confirm.Decision
}

func (g *fakeGate) Ask(ctx context.Context, p confirm.Prompt) <-chan confirm.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan confirm.Decision, 1)
	g.prompts = append(g.prompts, p)
	g.chans = append(g.chans, ch)
	return ch
}

func (g *fakeGate) asked() []confirm.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]confirm.Prompt(nil), g.prompts...)
}

func (g *fakeGate) decide(t *testing.T, d confirm.Decision) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.chans, "gate was never asked")
	g.chans[len(g.chans)-1] <- d
}

func (g *fakeGate) closeLast(t *testing.T) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.chans, "gate was never asked")
	close(g.chans[len(g.chans)-1])
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Event)
	}
	return out
}

func (r *recordingNotifier) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func cloneSnapshot(s *snapshot.Snapshot) *snapshot.Snapshot {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, s); err != nil {
		panic(err)
	}
	out, err := snapshot.Decode(&buf)
	if err != nil {
		panic(err)
	}
	return out
}

func itemsTable(rows ...snapshot.Row) snapshot.Table {
	return snapshot.Table{
		Name:            "items",
		CreateStatement: "CREATE TABLE `items` (`id` int NOT NULL, `label` varchar(32), PRIMARY KEY (`id`))",
		Columns:         []string{"id", "label"},
		Rows:            rows,
	}
}

func item(id, label string) snapshot.Row {
	return snapshot.Row{"id": snapshot.Value(id), "label": snapshot.Value(label)}
}

// twoRowRemote is one table with two rows.
func twoRowRemote() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Database: "shop",
		Tables:   []snapshot.Table{itemsTable(item("1", "apple"), item("2", "pear"))},
	}
}

type harness struct {
	source   *fakeSource
	mutator  *fakeMutator
	gate     *fakeGate
	notifier *recordingNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, local, remote *snapshot.Snapshot, opts ...func(*Options)) *harness {
	t.Helper()

	h := &harness{
		source:   newFakeSource(local, remote),
		gate:     &fakeGate{},
		notifier: &recordingNotifier{},
	}
	h.mutator = &fakeMutator{source: h.source}

	o := Options{Local: localID, Remote: remoteID, Notifier: h.notifier}
	for _, fn := range opts {
		fn(&o)
	}

	orch, err := NewOrchestrator(h.source, h.gate, h.mutator, o)
	require.NoError(t, err)
	t.Cleanup(orch.Stop)
	h.orch = orch
	return h
}
