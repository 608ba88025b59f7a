package reconciler

// CheckState drives a "select all" checkbox.
type CheckState int

const (
	CheckNone CheckState = iota
	CheckSome
	CheckAll
)

func checkState(selected, eligible int) CheckState {
	switch {
	case selected == 0 || eligible == 0:
		return CheckNone
	case selected >= eligible:
		return CheckAll
	default:
		return CheckSome
	}
}

// Counts are the view-level and session-wide counters.
type Counts struct {
	EligibleToAdd    int
	EligibleToRemove int
	SelectedToAdd    int
	SelectedToRemove int
	// Totals are session-wide, not limited to the view.
	TotalToAdd    int
	TotalToRemove int
}

// AddState is the tri-state of the "select all to add" checkbox.
func (c Counts) AddState() CheckState { return checkState(c.SelectedToAdd, c.EligibleToAdd) }

// RemoveState is the tri-state of the "select all to remove" checkbox.
func (c Counts) RemoveState() CheckState { return checkState(c.SelectedToRemove, c.EligibleToRemove) }

// Counts recomputes the counters from the visible list.
func (s *Session) Counts() Counts {
	c := Counts{TotalToAdd: len(s.toAdd), TotalToRemove: len(s.toRemove)}
	for _, it := range s.Visible() {
		if it.EligibleToAdd() {
			c.EligibleToAdd++
			if it.MarkedAdd {
				c.SelectedToAdd++
			}
		}
		if it.EligibleToRemove() {
			c.EligibleToRemove++
			if it.MarkedRemove {
				c.SelectedToRemove++
			}
		}
	}
	return c
}
