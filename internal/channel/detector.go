package channel

import "sort"

// ChangeKind classifies an issue in the current snapshot.
type ChangeKind int

const (
	// ChangeNew is an issue absent from the record.
	ChangeNew ChangeKind = iota + 1
	// ChangeUpdated is a recorded issue whose updatedAt moved.
	ChangeUpdated
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Change is one issue that needs work this pass.
type Change struct {
	Kind  ChangeKind
	Issue IssueSnapshot
}

// Detect diffs a snapshot against the record. Changes keep snapshot order;
// unchanged issues are omitted. Vanished lists recorded ids missing from
// the snapshot, sorted.
func Detect(snapshot []IssueSnapshot, processed ProcessedIssues) (changes []Change, vanished []string) {
	current := make(map[string]struct{}, len(snapshot))
	for _, issue := range snapshot {
		if _, dup := current[issue.ID]; dup {
			continue
		}
		current[issue.ID] = struct{}{}

		last, known := processed[issue.ID]
		switch {
		case !known:
			changes = append(changes, Change{Kind: ChangeNew, Issue: issue})
		case !last.Equal(normalizeTime(issue.UpdatedAt)):
			changes = append(changes, Change{Kind: ChangeUpdated, Issue: issue})
		}
	}

	for id := range processed {
		if _, ok := current[id]; !ok {
			vanished = append(vanished, id)
		}
	}
	sort.Strings(vanished)
	return changes, vanished
}
