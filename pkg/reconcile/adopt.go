package reconcile

import (
	"github.com/e2llm/repoconf/pkg/record"
)

// Reason tells why adoption touched a repository.
type Reason string

const (
	// RemovedElsewhere: in the baseline and still live, but gone from the
	// working copy without a queued delete.
	RemovedElsewhere Reason = "removed elsewhere"
	// Vanished: in the working copy but no longer live.
	Vanished Reason = "vanished from backend"
	// Adopted: live but unknown to this session.
	Adopted Reason = "adopted"
)

// Note records one adoption decision.
type Note struct {
	ID     int64
	Alias  string
	Reason Reason
}

// AdoptInput is the state adoption reconciles. Identity is the backend id.
type AdoptInput struct {
	BaselineIDs []int64
	Working     []record.Repository
	// Removed reports ids this session removed on purpose (deleted,
	// dropped with their service, or already forgotten).
	Removed func(id int64) bool
	Live    []record.Repository
}

// Adopt merges live backend truth into the working copy. Working records
// that are still live keep their staged values; live records nobody in this
// session knows about are appended enabled. Running it twice against the
// same live list changes nothing the second time.
func Adopt(in AdoptInput) ([]record.Repository, []Note) {
	removed := in.Removed
	if removed == nil {
		removed = func(int64) bool { return false }
	}
	live := make(map[int64]record.Repository, len(in.Live))
	for _, r := range in.Live {
		live[r.ID] = r
	}
	baseline := make(map[int64]struct{}, len(in.BaselineIDs))
	for _, id := range in.BaselineIDs {
		baseline[id] = struct{}{}
	}

	var notes []Note
	out := make([]record.Repository, 0, len(in.Working)+len(in.Live))
	working := make(map[int64]struct{}, len(in.Working))
	for _, r := range in.Working {
		working[r.ID] = struct{}{}
		if _, ok := live[r.ID]; !ok {
			notes = append(notes, Note{ID: r.ID, Alias: r.Alias, Reason: Vanished})
			continue
		}
		out = append(out, r)
	}

	for _, r := range in.Live {
		if _, ok := working[r.ID]; ok {
			continue
		}
		if removed(r.ID) {
			continue
		}
		if _, ok := baseline[r.ID]; ok {
			notes = append(notes, Note{ID: r.ID, Alias: r.Alias, Reason: RemovedElsewhere})
			continue
		}
		r.Enabled = true
		r.DoRefresh = false
		out = append(out, r)
		notes = append(notes, Note{ID: r.ID, Alias: r.Alias, Reason: Adopted})
	}
	return out, notes
}
