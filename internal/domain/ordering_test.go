package domain

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func column(orders ...int) []OrderedMember {
	out := make([]OrderedMember, 0, len(orders))
	for i, order := range orders {
		out = append(out, OrderedMember{ID: int64(i + 1), Order: order})
	}
	return out
}

func TestReorderCases(t *testing.T) {
	tests := []struct {
		name        string
		members     []OrderedMember
		movingID    int64
		targetIndex int
		want        map[int64]int
	}{
		{
			name:        "gap preservation within column",
			members:     column(4, 9, 12),
			movingID:    2,
			targetIndex: 0,
			want:        map[int64]int{2: 4, 1: 9, 3: 12},
		},
		{
			name:        "move last to middle",
			members:     column(4, 9, 12),
			movingID:    3,
			targetIndex: 1,
			want:        map[int64]int{1: 4, 3: 9, 2: 12},
		},
		{
			name:        "cross column insert ignores index",
			members:     column(4, 9, 12),
			movingID:    99,
			targetIndex: 1,
			want:        map[int64]int{1: 4, 2: 9, 3: 12, 99: 13},
		},
		{
			name:        "cross column into empty column",
			members:     nil,
			movingID:    7,
			targetIndex: 3,
			want:        map[int64]int{7: 0},
		},
		{
			name:        "collisions renormalized",
			members:     column(0, 0, 0),
			movingID:    1,
			targetIndex: 2,
			want:        map[int64]int{2: 0, 3: 1, 1: 2},
		},
		{
			name:        "index beyond length appends",
			members:     column(1, 2, 3),
			movingID:    1,
			targetIndex: 42,
			want:        map[int64]int{2: 1, 3: 2, 1: 3},
		},
		{
			name:        "negative index clamps to front",
			members:     column(1, 2, 3),
			movingID:    3,
			targetIndex: -5,
			want:        map[int64]int{3: 1, 1: 2, 2: 3},
		},
		{
			name:        "single member keeps its value",
			members:     column(5),
			movingID:    1,
			targetIndex: 0,
			want:        map[int64]int{1: 5},
		},
		{
			name:        "negative orders bumped from zero",
			members:     column(-3, -3, 10),
			movingID:    3,
			targetIndex: 0,
			want:        map[int64]int{3: 0, 1: 1, 2: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reorder(tt.members, tt.movingID, tt.targetIndex)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Reorder() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReorderIsIdempotent(t *testing.T) {
	members := column(3, 3, 8, 20, 20)
	first := Reorder(members, 4, 1)
	second := Reorder(members, 4, 1)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Reorder() not idempotent (-first +second):\n%s", diff)
	}
}

func TestReorderKeepsColumnStrictlyIncreasing(t *testing.T) {
	columns := [][]OrderedMember{
		column(0, 0, 0, 0),
		column(4, 9, 12),
		column(1, 1, 2, 2, 3),
		column(-1, 5, 5, 100),
	}
	for ci, members := range columns {
		ids := make([]int64, 0, len(members)+1)
		for _, m := range members {
			ids = append(ids, m.ID)
		}
		ids = append(ids, 1000)
		for _, moving := range ids {
			for target := -1; target <= len(members)+1; target++ {
				assignments := Reorder(members, moving, target)
				after := make([]OrderedMember, 0, len(assignments))
				for id, order := range assignments {
					after = append(after, OrderedMember{ID: id, Order: order})
				}
				SortOrderedMembers(after)
				seen := map[int]bool{}
				for i, m := range after {
					if seen[m.Order] {
						t.Fatalf("column %d moving %d target %d: duplicate order %d", ci, moving, target, m.Order)
					}
					seen[m.Order] = true
					if i > 0 && after[i-1].Order >= m.Order {
						t.Fatalf("column %d moving %d target %d: orders not increasing %#v", ci, moving, target, after)
					}
				}
			}
		}
	}
}

func TestReorderPreservesValueSetWithinColumn(t *testing.T) {
	members := column(4, 9, 12)
	got := Reorder(members, 2, 0)
	values := make([]int, 0, len(got))
	for _, v := range got {
		values = append(values, v)
	}
	slices.Sort(values)
	if diff := cmp.Diff([]int{4, 9, 12}, values); diff != "" {
		t.Fatalf("value set changed (-want +got):\n%s", diff)
	}
}

func TestChangedOrdersDropsUnchanged(t *testing.T) {
	members := column(4, 9, 12)
	got := ChangedOrders(members, Reorder(members, 99, 0))
	if diff := cmp.Diff(map[int64]int{99: 13}, got); diff != "" {
		t.Fatalf("ChangedOrders() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextOrder(t *testing.T) {
	if got := NextOrder(nil); got != 0 {
		t.Fatalf("NextOrder(nil) = %d, want 0", got)
	}
	if got := NextOrder(column(4, 4, 2)); got != 6 {
		t.Fatalf("NextOrder() = %d, want 6", got)
	}
}
