// Package planner owns the item and group lists, applies mutations and
// persists the result to a blob store.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/palette"
	"planner/internal/recur"
	"planner/internal/store"
)

// StateKey is the blob store key holding the serialized State.
const StateKey = "planner_state"

var ErrNotFound = errors.New("not found")

// State is the persisted form of a planner.
type State struct {
	Items  []model.Item  `json:"items"`
	Groups []model.Group `json:"groups"`
}

type Options struct {
	// FirstWeekday starts every calendar week. Defaults to Sunday.
	FirstWeekday time.Weekday
	// Location decides which day is "today". Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

type Planner struct {
	kv     store.Blob
	leases *palette.Manager
	opts   Options

	mu     sync.RWMutex
	items  []model.Item
	groups []model.Group
}

func New(kv store.Blob, leases *palette.Manager, opts Options) *Planner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if leases == nil {
		leases = palette.NewManager(nil, palette.WithClock(opts.Now), palette.WithLocation(opts.Location))
	}
	return &Planner{
		kv:     kv,
		leases: leases,
		opts:   opts,
		items:  []model.Item{},
		groups: []model.Group{},
	}
}

// Load replaces the in-memory state with the stored one. A store without
// saved state leaves the planner empty.
func (p *Planner) Load(ctx context.Context) error {
	data, err := p.kv.Load(ctx, StateKey)
	if errors.Is(err, store.ErrNotFound) {
		appLog.Info("planner: no saved state, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("planner: load state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("planner: decode state: %w", err)
	}
	// Re-finalize so older blobs satisfy the per-type field rules.
	for i, it := range st.Items {
		st.Items[i] = model.Update(it, model.Patch{})
	}
	if st.Items == nil {
		st.Items = []model.Item{}
	}
	if st.Groups == nil {
		st.Groups = []model.Group{}
	}

	p.mu.Lock()
	p.items, p.groups = st.Items, st.Groups
	p.mu.Unlock()

	appLog.Info("planner: state loaded", "items", len(st.Items), "groups", len(st.Groups))
	return nil
}

// commit persists the new lists and, only if that succeeds, adopts them.
// Callers hold p.mu.
func (p *Planner) commit(ctx context.Context, items []model.Item, groups []model.Group) error {
	data, err := json.Marshal(State{Items: items, Groups: groups})
	if err != nil {
		return fmt.Errorf("planner: encode state: %w", err)
	}
	if err := p.kv.Save(ctx, StateKey, data); err != nil {
		return fmt.Errorf("planner: save state: %w", err)
	}
	p.items, p.groups = items, groups
	return nil
}

func (p *Planner) Items() []model.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.items)
}

func (p *Planner) Groups() []model.Group {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.groups)
}

func (p *Planner) Item(id string) (model.Item, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := p.indexOf(id)
	if i < 0 {
		return model.Item{}, false
	}
	return p.items[i], true
}

func (p *Planner) indexOf(id string) int {
	return slices.IndexFunc(p.items, func(it model.Item) bool { return it.ID == id })
}

// AddItem creates the items described by d (several for a repeating
// routine) and returns them.
func (p *Planner) AddItem(ctx context.Context, d model.Draft) ([]model.Item, error) {
	if err := model.Validate(model.Build(d, "", time.Time{})); err != nil {
		return nil, err
	}

	created := recur.Expand(d)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.commit(ctx, append(slices.Clone(p.items), created...), p.groups); err != nil {
		return nil, err
	}

	appLog.Info("planner: items added", "type", string(d.Type), "title", d.Title, "count", len(created))
	return created, nil
}

// UpdateItem applies patch to the item with the given id.
func (p *Planner) UpdateItem(ctx context.Context, id string, patch model.Patch) (model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(id)
	if i < 0 {
		return model.Item{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	before := p.items[i]
	updated := model.Update(before, patch)
	if err := model.Validate(updated); err != nil {
		return model.Item{}, err
	}

	items := slices.Clone(p.items)
	items[i] = updated
	if err := p.commit(ctx, items, p.groups); err != nil {
		return model.Item{}, err
	}
	if before.Type == model.TypePeriod && updated.Type != model.TypePeriod {
		p.leases.Release(id)
	}
	return updated, nil
}

// ToggleChecked flips the checked flag of a todo or routine.
func (p *Planner) ToggleChecked(ctx context.Context, id string) (model.Item, error) {
	it, ok := p.Item(id)
	if !ok {
		return model.Item{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if !it.Type.Checkable() {
		return model.Item{}, fmt.Errorf("%w: %s items cannot be checked", model.ErrInvalidItem, it.Type)
	}
	flipped := !it.IsChecked()
	return p.UpdateItem(ctx, id, model.Patch{Checked: &flipped})
}

// DeleteItem removes one item and gives back its color lease.
func (p *Planner) DeleteItem(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err := p.commit(ctx, slices.Delete(slices.Clone(p.items), i, i+1), p.groups); err != nil {
		return err
	}
	p.leases.Release(id)
	return nil
}

// DeleteRoutineGroup removes every occurrence of a routine and reports how
// many were removed.
func (p *Planner) DeleteRoutineGroup(ctx context.Context, routineGroupID string) (int, error) {
	if routineGroupID == "" {
		return 0, fmt.Errorf("%w: empty routine group id", model.ErrInvalidItem)
	}
	return p.deleteWhere(ctx, func(it model.Item) bool { return it.RoutineGroupID == routineGroupID })
}

// DeleteAllItems removes every item. Groups are kept.
func (p *Planner) DeleteAllItems(ctx context.Context) (int, error) {
	return p.deleteWhere(ctx, func(model.Item) bool { return true })
}

func (p *Planner) deleteWhere(ctx context.Context, match func(model.Item) bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := make([]model.Item, 0, len(p.items))
	var removed []string
	for _, it := range p.items {
		if match(it) {
			removed = append(removed, it.ID)
			continue
		}
		kept = append(kept, it)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := p.commit(ctx, kept, p.groups); err != nil {
		return 0, err
	}
	for _, id := range removed {
		p.leases.Release(id)
	}
	return len(removed), nil
}

func validGroup(g model.Group) error {
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: group title is empty", model.ErrInvalidItem)
	}
	switch g.Type {
	case model.GroupFlow, model.GroupRelated, model.GroupDependency, model.GroupCustom:
		return nil
	}
	return fmt.Errorf("%w: unknown group type %q", model.ErrInvalidItem, g.Type)
}

func (p *Planner) AddGroup(ctx context.Context, title string, typ model.GroupType, description string) (model.Group, error) {
	g := model.NewGroup(title, typ, description)
	if err := validGroup(g); err != nil {
		return model.Group{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.commit(ctx, p.items, append(slices.Clone(p.groups), g)); err != nil {
		return model.Group{}, err
	}
	return g, nil
}

func (p *Planner) UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (model.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.groups, func(g model.Group) bool { return g.ID == id })
	if i < 0 {
		return model.Group{}, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	updated := model.UpdateGroup(p.groups[i], patch)
	if err := validGroup(updated); err != nil {
		return model.Group{}, err
	}

	groups := slices.Clone(p.groups)
	groups[i] = updated
	if err := p.commit(ctx, p.items, groups); err != nil {
		return model.Group{}, err
	}
	return updated, nil
}

// DeleteGroup removes a group and every item's link to it.
func (p *Planner) DeleteGroup(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.IndexFunc(p.groups, func(g model.Group) bool { return g.ID == id })
	if i < 0 {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}

	items := make([]model.Item, len(p.items))
	for j, it := range p.items {
		items[j] = model.WithoutGroup(it, id)
	}
	return p.commit(ctx, items, slices.Delete(slices.Clone(p.groups), i, i+1))
}

// PruneLeases drops color leases held by items that no longer exist.
func (p *Planner) PruneLeases() int {
	n := p.leases.Prune(p.Items())
	if n > 0 {
		appLog.Info("planner: pruned color leases", "released", n)
	}
	return n
}
