package domain

import (
	"cmp"
	"slices"
)

// OrderedMember is one card of a status column.
type OrderedMember struct {
	ID    int64
	Order int
}

// SortOrderedMembers sorts members into display sequence: order ascending, then id.
func SortOrderedMembers(members []OrderedMember) {
	slices.SortStableFunc(members, func(a, b OrderedMember) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// NormalizeOrders returns the column's order values made strictly increasing.
// A value not greater than its predecessor becomes predecessor+1; larger gaps are kept.
func NormalizeOrders(members []OrderedMember) []int {
	values := make([]int, len(members))
	previous := -1
	for i, m := range members {
		value := m.Order
		if value <= previous {
			value = previous + 1
		}
		values[i] = value
		previous = value
	}
	return values
}

// Reorder computes new order values for a column after movingID is dropped at targetIndex.
//
// members must already be in display sequence (see SortOrderedMembers). When movingID is
// not a member it is treated as arriving from another column and is placed after every
// existing member with lastValue+1, whatever targetIndex says. The result maps every
// member, plus the moving entity, to its new order.
func Reorder(members []OrderedMember, movingID int64, targetIndex int) map[int64]int {
	values := NormalizeOrders(members)

	sequence := make([]int64, 0, len(members)+1)
	incoming := true
	for _, m := range members {
		if m.ID == movingID {
			incoming = false
			continue
		}
		sequence = append(sequence, m.ID)
	}
	targetIndex = max(0, min(targetIndex, len(sequence)))
	sequence = slices.Insert(sequence, targetIndex, movingID)

	out := make(map[int64]int, len(sequence))
	if !incoming {
		for i, id := range sequence {
			out[id] = values[i]
		}
		return out
	}

	next := 0
	if len(values) > 0 {
		next = values[len(values)-1] + 1
	}
	i := 0
	for _, id := range sequence {
		if id == movingID {
			continue
		}
		out[id] = values[i]
		i++
	}
	out[movingID] = next
	return out
}

// ChangedOrders keeps only the assignments that differ from the members' current orders.
// Entities absent from members are always kept.
func ChangedOrders(members []OrderedMember, assignments map[int64]int) map[int64]int {
	current := make(map[int64]int, len(members))
	for _, m := range members {
		current[m.ID] = m.Order
	}
	out := make(map[int64]int, len(assignments))
	for id, order := range assignments {
		if prev, ok := current[id]; ok && prev == order {
			continue
		}
		out[id] = order
	}
	return out
}

// NextOrder returns the order for a card appended to the bottom of a column.
// It matches the value Reorder gives an incoming card.
func NextOrder(members []OrderedMember) int {
	if len(members) == 0 {
		return 0
	}
	sorted := slices.Clone(members)
	SortOrderedMembers(sorted)
	values := NormalizeOrders(sorted)
	return values[len(values)-1] + 1
}
