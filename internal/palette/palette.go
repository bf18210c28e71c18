// Package palette hands out display colors: a fixed color per item type and
// a small rotating palette leased to period items.
package palette

import (
	"sync"
	"time"

	appLog "planner/internal/log"
	"planner/internal/model"
)

type Color string

// DefaultPeriodColors are the five cyan shades leased to period items.
var DefaultPeriodColors = []Color{
	"#06b6d4",
	"#0891b2",
	"#0e7490",
	"#155e75",
	"#164e63",
}

var typeColors = map[model.Type]Color{
	model.TypeTodo:     "#3b82f6",
	model.TypeEvent:    "#f97316",
	model.TypeRoutine:  "#8b5cf6",
	model.TypeDeadline: "#ec4899",
	model.TypePeriod:   "#06b6d4",
}

const fallbackColor Color = "#6b7280"

// TypeColor is the fixed color of an item type.
func TypeColor(t model.Type) Color {
	if c, ok := typeColors[t]; ok {
		return c
	}
	return fallbackColor
}

type lease struct {
	color   Color
	endDate model.Date
}

// Manager leases palette colors to item ids. Leases live in memory only and
// are renegotiated lazily after a restart. It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	palette []Color
	byColor map[Color]string
	byItem  map[string]lease

	now func() time.Time
	loc *time.Location
}

type Option func(*Manager)

// WithClock overrides time.Now, used to decide which leases have expired.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the location in which "today" is computed.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// NewManager creates a Manager over colors, or DefaultPeriodColors when
// colors is empty.
func NewManager(colors []Color, opts ...Option) *Manager {
	if len(colors) == 0 {
		colors = DefaultPeriodColors
	}
	m := &Manager{
		palette: append([]Color(nil), colors...),
		byColor: make(map[Color]string, len(colors)),
		byItem:  make(map[string]lease, len(colors)),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Palette returns the leasable colors in scan order.
func (m *Manager) Palette() []Color {
	return append([]Color(nil), m.palette...)
}

// ColorFor returns the color leased to itemID, leasing one if needed.
//
// A new lease takes the first palette color that is free or whose holder
// has ended before today. The holder's end date is looked up in items when
// it is there, otherwise the end date recorded with its lease is used.
// Deleted holders are dropped by Release and Prune, not here. When every
// color is held by a running item, the first palette color is taken from
// its holder.
func (m *Manager) ColorFor(itemID string, endDate model.Date, items []model.Item) Color {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.byItem[itemID]; ok {
		if !endDate.IsZero() && !l.endDate.Equal(endDate) {
			l.endDate = endDate
			m.byItem[itemID] = l
		}
		return l.color
	}

	today := model.DateOf(m.now().In(m.loc))
	chosen, found := Color(""), false
	for _, c := range m.palette {
		holder, leased := m.byColor[c]
		if !leased {
			chosen, found = c, true
			break
		}
		if m.ended(holder, today, items) {
			appLog.Debug("palette: reclaiming color from ended item", "color", string(c), "from", holder, "to", itemID)
			m.drop(holder)
			chosen, found = c, true
			break
		}
	}

	if !found {
		chosen = m.palette[0]
		appLog.Warn("palette: all colors in use, evicting first color", "color", string(chosen), "from", m.byColor[chosen], "to", itemID)
		m.drop(m.byColor[chosen])
	}

	m.byColor[chosen] = itemID
	m.byItem[itemID] = lease{color: chosen, endDate: endDate}
	return chosen
}

func (m *Manager) ended(holder string, today model.Date, items []model.Item) bool {
	end := m.byItem[holder].endDate
	for _, it := range items {
		if it.ID == holder {
			end = it.EndDate
			break
		}
	}
	return !end.IsZero() && end.Before(today)
}

// Release drops the lease held by itemID, if any.
func (m *Manager) Release(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drop(itemID)
}

func (m *Manager) drop(itemID string) {
	l, ok := m.byItem[itemID]
	if !ok {
		return
	}
	delete(m.byItem, itemID)
	if m.byColor[l.color] == itemID {
		delete(m.byColor, l.color)
	}
}

// Prune releases every lease whose holder is not in live and reports how
// many were released.
func (m *Manager) Prune(live []model.Item) int {
	keep := make(map[string]struct{}, len(live))
	for _, it := range live {
		keep[it.ID] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for id := range m.byItem {
		if _, ok := keep[id]; !ok {
			m.drop(id)
			released++
		}
	}
	return released
}

// Holder returns the item currently leasing c.
func (m *Manager) Holder(c Color) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byColor[c]
	return id, ok
}

// Len is the number of active leases.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byItem)
}
