package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Summary — итоговые счётчики прогона.
type Summary struct {
	Orders            int // заявок с итоговой записью
	Done              int
	Skipped           int
	Failed            int
	Created           map[Stage]int
	Updated           map[Stage]int
	Unchanged         map[Stage]int
	Applied           int
	LeftUnapplied     int
	DuplicatesDeleted int
	SkipReasons       map[string]int
}

func newSummary() Summary {
	return Summary{
		Created:     map[Stage]int{},
		Updated:     map[Stage]int{},
		Unchanged:   map[Stage]int{},
		SkipReasons: map[string]int{},
	}
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "orders=%d done=%d skipped=%d failed=%d", s.Orders, s.Done, s.Skipped, s.Failed)
	for _, st := range []Stage{StageSalesOrder, StageTransfer, StageDispatch} {
		fmt.Fprintf(&b, " %s(created=%d updated=%d unchanged=%d)", st, s.Created[st], s.Updated[st], s.Unchanged[st])
	}
	fmt.Fprintf(&b, " applied=%d left_unapplied=%d duplicates_deleted=%d", s.Applied, s.LeftUnapplied, s.DuplicatesDeleted)
	if len(s.SkipReasons) > 0 {
		reasons := make([]string, 0, len(s.SkipReasons))
		for r, n := range s.SkipReasons {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
		}
		sort.Strings(reasons)
		b.WriteString(" skip_reasons[" + strings.Join(reasons, " ") + "]")
	}
	return b.String()
}

// Recorder накапливает события прогона и считает Summary.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	summary Summary
}

func NewRecorder() *Recorder { return &Recorder{summary: newSummary()} }

func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)

	s := &r.summary
	switch e.Action {
	case ActionCreated:
		s.Created[e.Stage]++
	case ActionUpdated:
		s.Updated[e.Stage]++
	case ActionUnchanged:
		s.Unchanged[e.Stage]++
	case ActionApplied:
		s.Applied++
	case ActionLeftUnapplied:
		s.LeftUnapplied++
	case ActionDuplicateDeleted:
		s.DuplicatesDeleted++
	}

	if e.Stage == StageOrder {
		s.Orders++
		switch e.Action {
		case ActionDone:
			s.Done++
		case ActionSkipped:
			s.Skipped++
			s.SkipReasons[e.Reason]++
		case ActionFailed:
			s.Failed++
		}
	}
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.summary
	out.Created = copyMap(r.summary.Created)
	out.Updated = copyMap(r.summary.Updated)
	out.Unchanged = copyMap(r.summary.Unchanged)
	out.SkipReasons = copyMap(r.summary.SkipReasons)
	return out
}

func copyMap[K comparable](m map[K]int) map[K]int {
	out := make(map[K]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
