package worker

import (
	"math"
	"sort"
	"sync"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

// progressTracker turns raw byte counts into initiate/progress/done events.
// Percentages per asset never decrease and repeats are suppressed.
type progressTracker struct {
	emit func(types.Event)

	mu       sync.Mutex
	assets   map[string]*types.LoadProgress
	finished map[string]bool
}

func newProgressTracker(emit func(types.Event)) *progressTracker {
	return &progressTracker{
		emit:     emit,
		assets:   make(map[string]*types.LoadProgress),
		finished: make(map[string]bool),
	}
}

// observe is an engine.ProgressFunc.
func (t *progressTracker) observe(p engine.Progress) {
	if p.Total <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished[p.Asset] {
		return
	}
	st, ok := t.assets[p.Asset]
	if !ok {
		st = &types.LoadProgress{AssetID: p.Asset, BytesTotal: p.Total, Phase: types.LoadInitiated}
		t.assets[p.Asset] = st
		t.emit(types.Event{Status: types.EventInitiate, File: p.Asset, Progress: intPtr(0)})
	}
	st.BytesLoaded = p.Loaded
	st.BytesTotal = p.Total
	if p.Loaded >= p.Total {
		delete(t.assets, p.Asset)
		t.finished[p.Asset] = true
		t.emit(types.Event{Status: types.EventDone, File: p.Asset})
		return
	}
	pct := int(math.Round(float64(p.Loaded) / float64(p.Total) * 100))
	if pct <= st.Percent {
		return
	}
	st.Percent = pct
	st.Phase = types.LoadInProgress
	t.emit(types.Event{Status: types.EventProgress, File: p.Asset, Progress: intPtr(pct)})
}

// inFlight returns assets that are not done, sorted by id.
func (t *progressTracker) inFlight() []types.LoadProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.LoadProgress, 0, len(t.assets))
	for _, st := range t.assets {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

func intPtr(v int) *int { return &v }
