package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/kv"
	"github.com/five82/clanboard/internal/model"
	"github.com/five82/clanboard/internal/persist"
	"github.com/five82/clanboard/internal/rpc"
)

// Backend is the host API the store calls. *clanapi.API implements it.
type Backend interface {
	PickClanDir(ctx context.Context) (string, error)
	CreateClan(ctx context.Context, dest string, meta model.ClanMetaData) error
	ClanDetails(ctx context.Context, clanID string) (model.ClanData, error)
	SetClanDetails(ctx context.Context, clanID string, data model.ClanData) error
	LoadClan(ctx context.Context, clanID string) (model.ClanOutput, error)

	MachineStates(ctx context.Context, clanID string) (map[string]model.MachineStatus, error)
	CreateMachine(ctx context.Context, clanID, machineID string, data model.MachineData) (model.MachineData, error)
	SetMachine(ctx context.Context, clanID, machineID string, data model.MachineData) error
	DeleteMachine(ctx context.Context, clanID, machineID string) error

	CheckSSH(ctx context.Context, ssh model.SSH) error
	HardwareReport(ctx context.Context, clanID, machineID string) (*model.HardwareReport, error)
	GenerateHardwareReport(ctx context.Context, clanID, machineID string, ssh model.SSH) (*model.HardwareReport, error)
	DiskTemplates(ctx context.Context, clanID, machineID string) (model.DiskTemplates, error)
	VarsPromptGroups(ctx context.Context, clanID, machineID string) ([]model.VarsPromptGroup, error)
	SetDiskSchema(ctx context.Context, clanID, machineID, diskPath string) error
	RunGenerators(ctx context.Context, clanID, machineID string, values model.PromptValues) error
	RunInstall(ctx context.Context, clanID, machineID string, ssh model.SSH, opts ...rpc.CallOption) error
	RunUpdate(ctx context.Context, clanID, machineID string, ssh model.SSH, opts ...rpc.CallOption) error
	OnProgress(op rpc.Operation, taskID string, fn func(model.InstallProgress)) (func(), error)

	CreateServiceInstance(ctx context.Context, clanID string, inst model.ServiceInstanceOutput) error
}

// Options configure New.
type Options struct {
	API     Backend
	Storage kv.Backend
	Logger  *zap.Logger
}

// tree is the state guarded by Clans.mu.
type tree struct {
	clans     model.Clans
	positions model.PositionBook

	// Set by mutations and consumed by update.
	dirty   persist.Dirty
	changed bool
}

func (t *tree) mark(d persist.Dirty) {
	t.dirty |= d
	t.changed = true
}

func (t *tree) touch() {
	t.changed = true
}

// loaded returns the loaded clan with the given id.
func (t *tree) loaded(id string) (*model.Clan, error) {
	e, ok := t.clans.Get(id)
	if !ok {
		return nil, fmt.Errorf("clan %s: %w", id, ErrNotFound)
	}
	c, ok := model.AsClan(e)
	if !ok {
		return nil, fmt.Errorf("clan %s: %w", id, ErrNotLoaded)
	}
	return c, nil
}

func (t *tree) machine(clanID, machineID string) (*model.Clan, *model.Machine, error) {
	c, err := t.loaded(clanID)
	if err != nil {
		return nil, nil, err
	}
	m, ok := c.Machines.Get(machineID)
	if !ok {
		return nil, nil, fmt.Errorf("machine %s: %w", machineID, ErrNotMember)
	}
	return c, m, nil
}

// Clans owns the clan tree. All reads return copies; all writes go through
// update, which persists dirty keys and notifies subscribers.
type Clans struct {
	api       Backend
	storage   kv.Backend
	logger    *zap.Logger
	newTaskID func() string

	mu sync.RWMutex
	t  tree

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New returns an empty store. Call Init to restore the persisted state.
func New(opts Options) (*Clans, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("api is nil")
	}
	storage := opts.Storage
	if storage == nil {
		storage = kv.NewMemory()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clans{
		api:       opts.API,
		storage:   storage,
		logger:    logger,
		newTaskID: uuid.NewString,
		t: tree{
			clans:     model.NewClans(),
			positions: model.NewPositionBook(nil),
		},
		subs: make(map[int]chan struct{}),
	}, nil
}

// Init restores the clan list from storage. The active clan is loaded in
// full; every other entry gets its metadata only. Entries whose details
// cannot be fetched are kept with their id as name so they can still be
// removed.
func (s *Clans) Init(ctx context.Context) error {
	state, err := persist.Load(s.storage, s.logger)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	book := model.NewPositionBook(state.Positions)

	clans := model.NewClans()
	for i, id := range state.ClanIDs {
		if i == state.ActiveIndex {
			out, err := s.api.LoadClan(ctx, id)
			if err == nil {
				clans.All = append(clans.All, s.newClan(out, book.For(id)))
				clans.ActiveIndex = i
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("load active clan", zap.String("clan", id), zap.Error(err))
		}
		meta := model.ClanMetaOutput{ID: id, Data: model.ClanMetaData{Name: id}}
		data, err := s.api.ClanDetails(ctx, id)
		switch {
		case err == nil:
			meta.Data = model.ClanMetaData{Name: data.Name, Description: data.Description}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.logger.Warn("fetch clan details", zap.String("clan", id), zap.Error(err))
		}
		clans.All = append(clans.All, model.NewClanMeta(meta))
	}

	return s.update(func(t *tree) error {
		t.clans = clans
		t.positions = book
		// Positions allocated while loading the active clan are new.
		t.mark(persist.DirtyPositions)
		return nil
	})
}

// Snapshot returns a deep copy of the clan collection.
func (s *Clans) Snapshot() model.Clans {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.clans.Clone()
}

// ActiveClan returns a copy of the active clan.
func (s *Clans) ActiveClan() (*model.Clan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.t.clans.ActiveClan()
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Subscribe returns a channel that receives a value after every change.
// Notifications coalesce: a slow reader sees one pending value no matter
// how many changes happened. Call the returned function to unsubscribe.
func (s *Clans) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Clans) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// view runs fn under the read lock.
func (s *Clans) view(fn func(t *tree) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.t)
}

// update runs fn under the write lock, then saves the keys fn marked dirty
// and notifies subscribers when anything changed. Storage failures are
// logged; the in-memory change stands.
func (s *Clans) update(fn func(t *tree) error) error {
	s.mu.Lock()
	s.t.dirty, s.t.changed = 0, false
	err := fn(&s.t)
	dirty, changed := s.t.dirty, s.t.changed
	if dirty != 0 {
		snap := persist.Snapshot(s.t.clans, s.t.positions)
		if saveErr := persist.Save(s.storage, snap, dirty); saveErr != nil {
			s.logger.Warn("persist state", zap.Stringer("dirty", dirty), zap.Error(saveErr))
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return err
}

// RefreshActive refreshes the machine statuses of the active clan. It is a
// no-op when no clan is active.
func (s *Clans) RefreshActive(ctx context.Context) error {
	active, ok := s.ActiveClan()
	if !ok {
		return nil
	}
	return s.Clan(active.ID).Machines().RefreshStatuses(ctx)
}
