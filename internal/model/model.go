package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidItem is returned when an item breaks a structural rule, e.g. a
// period without both dates.
var ErrInvalidItem = errors.New("invalid item")

type Type string

const (
	TypeTodo     Type = "todo"
	TypeEvent    Type = "event"
	TypeRoutine  Type = "routine"
	TypeDeadline Type = "deadline"
	TypePeriod   Type = "period"
)

// Types lists every item type in display-priority order.
var Types = []Type{TypeDeadline, TypePeriod, TypeEvent, TypeRoutine, TypeTodo}

func (t Type) Valid() bool { return slices.Contains(Types, t) }

// Checkable reports whether items of this type carry a checked flag.
func (t Type) Checkable() bool { return t == TypeTodo || t == TypeRoutine }

type Repeat string

const (
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
	RepeatYearly  Repeat = "yearly"
)

type GroupType string

const (
	GroupFlow       GroupType = "flow"
	GroupRelated    GroupType = "related"
	GroupDependency GroupType = "dependency"
	GroupCustom     GroupType = "custom"
)

// GroupLink attaches an item to a group. Order is only kept on flow links.
type GroupLink struct {
	GroupID string    `json:"groupId"`
	Type    GroupType `json:"type"`
	Order   *int      `json:"order,omitempty"`
}

type Group struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Type        GroupType `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GroupPatch struct {
	Title       *string    `json:"title"`
	Type        *GroupType `json:"type"`
	Description *string    `json:"description"`
}

// Item is a single planner entry.
//
// Checked is nil for every type that is not Checkable and non-nil for those
// that are. Items built by NewItem or changed by Update always satisfy this.
type Item struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Type           Type        `json:"type"`
	StartDate      Date        `json:"startDate,omitzero"`
	EndDate        Date        `json:"endDate,omitzero"`
	StartTime      ClockTime   `json:"startTime,omitzero"`
	EndTime        ClockTime   `json:"endTime,omitzero"`
	Repeat         Repeat      `json:"repeat,omitempty"`
	RoutineGroupID string      `json:"routineGroupId,omitempty"`
	Groups         []GroupLink `json:"groups,omitempty"`
	Note           string      `json:"note,omitempty"`
	Checked        *bool       `json:"checked,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// IsChecked is false for unchecked and for non-checkable items.
func (it Item) IsChecked() bool {
	return it.Checked != nil && *it.Checked
}

// Someday reports whether the item has no dates at all.
func (it Item) Someday() bool {
	return it.StartDate.IsZero() && it.EndDate.IsZero()
}

// Interval reports whether both dates are set.
func (it Item) Interval() bool {
	return !it.StartDate.IsZero() && !it.EndDate.IsZero()
}

// Draft is an item that has not been assigned an identity yet.
type Draft struct {
	Title     string      `json:"title"`
	Type      Type        `json:"type"`
	StartDate Date        `json:"startDate,omitzero"`
	EndDate   Date        `json:"endDate,omitzero"`
	StartTime ClockTime   `json:"startTime,omitzero"`
	EndTime   ClockTime   `json:"endTime,omitzero"`
	Repeat    Repeat      `json:"repeat,omitempty"`
	Groups    []GroupLink `json:"groups,omitempty"`
	Note      string      `json:"note,omitempty"`
	Checked   *bool       `json:"checked,omitempty"`
}

// Patch is a partial update. Nil fields are left alone; a pointer to a zero
// Date or ClockTime clears that field.
type Patch struct {
	Title     *string      `json:"title"`
	Type      *Type        `json:"type"`
	StartDate *Date        `json:"startDate"`
	EndDate   *Date        `json:"endDate"`
	StartTime *ClockTime   `json:"startTime"`
	EndTime   *ClockTime   `json:"endTime"`
	Repeat    *Repeat      `json:"repeat"`
	Groups    *[]GroupLink `json:"groups"`
	Note      *string      `json:"note"`
	Checked   *bool        `json:"checked"`
}

func NewID() string { return uuid.NewString() }

// NewItem assigns a fresh id and creation time to d.
func NewItem(d Draft) Item {
	return Build(d, NewID(), time.Now().UTC())
}

// Build turns a draft into an item with the given identity.
func Build(d Draft, id string, createdAt time.Time) Item {
	return finalize(Item{
		ID:        id,
		Title:     d.Title,
		Type:      d.Type,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Repeat:    d.Repeat,
		Groups:    d.Groups,
		Note:      d.Note,
		Checked:   d.Checked,
		CreatedAt: createdAt,
	})
}

// Update applies p to it and rebuilds the result for its (possibly new)
// type. ID, CreatedAt and RoutineGroupID never change.
func Update(it Item, p Patch) Item {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Type != nil {
		it.Type = *p.Type
	}
	if p.StartDate != nil {
		it.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		it.EndDate = *p.EndDate
	}
	if p.StartTime != nil {
		it.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		it.EndTime = *p.EndTime
	}
	if p.Repeat != nil {
		it.Repeat = *p.Repeat
	}
	if p.Groups != nil {
		it.Groups = *p.Groups
	}
	if p.Note != nil {
		it.Note = *p.Note
	}
	if p.Checked != nil {
		it.Checked = p.Checked
	}
	return finalize(it)
}

// finalize copies the mutable parts of it and enforces the per-type field
// rules.
func finalize(it Item) Item {
	it.Groups = cloneLinks(it.Groups)

	if it.Type.Checkable() {
		checked := it.Checked != nil && *it.Checked
		it.Checked = &checked
	} else {
		it.Checked = nil
	}
	return it
}

func cloneLinks(links []GroupLink) []GroupLink {
	if links == nil {
		return nil
	}
	out := make([]GroupLink, len(links))
	for i, l := range links {
		out[i] = GroupLink{GroupID: l.GroupID, Type: l.Type}
		if l.Type == GroupFlow && l.Order != nil {
			order := *l.Order
			out[i].Order = &order
		}
	}
	return out
}

// Validate checks the rules a committed item must satisfy.
func Validate(it Item) error {
	if !it.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, it.Type)
	}
	if it.Type == TypePeriod && !it.Interval() {
		return fmt.Errorf("%w: period needs both startDate and endDate", ErrInvalidItem)
	}
	if it.Interval() && it.EndDate.Before(it.StartDate) {
		return fmt.Errorf("%w: endDate %s is before startDate %s", ErrInvalidItem, it.EndDate, it.StartDate)
	}
	return nil
}

// NewGroup creates a group with a fresh id.
func NewGroup(title string, typ GroupType, description string) Group {
	return Group{
		ID:          NewID(),
		Title:       title,
		Type:        typ,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

func UpdateGroup(g Group, p GroupPatch) Group {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Type != nil {
		g.Type = *p.Type
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	return g
}

// WithoutGroup returns it with every link to groupID removed.
func WithoutGroup(it Item, groupID string) Item {
	if len(it.Groups) == 0 {
		return it
	}
	kept := make([]GroupLink, 0, len(it.Groups))
	for _, l := range it.Groups {
		if l.GroupID != groupID {
			kept = append(kept, l)
		}
	}
	it.Groups = kept
	return it
}
