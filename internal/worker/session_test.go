package worker

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"thinkchat/internal/engine"
	"thinkchat/pkg/types"
)

func TestGenerate_EventOrder(t *testing.T) {
	m := &fakeModel{chunks: []string{"<think>", "plan", "</think>", "Hi", " there"}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)

	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("hello")})
	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	got := statuses(evs)
	if got[0] != types.EventStart || got[len(got)-1] != types.EventComplete {
		t.Fatalf("order %v", got)
	}
	for _, s := range got[1 : len(got)-1] {
		if s != types.EventUpdate {
			t.Fatalf("non-update between start and complete: %v", got)
		}
	}
	last := evs[len(evs)-2]
	if last.Output != "Hi there" || last.Thought != "plan" || last.State != "answering" || last.NumTokens != 5 {
		t.Fatalf("last update %+v", last)
	}
	if final := evs[len(evs)-1].Output; final != "<think>plan</think>Hi there" {
		t.Fatalf("final %q", final)
	}
}

func TestGenerate_CrossChunkMarker(t *testing.T) {
	m := &fakeModel{chunks: []string{"<th", "ink>reasoning</think>hello"}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)

	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("hi")})
	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	var answers, thoughts []string
	for _, e := range evs {
		if e.Status == types.EventUpdate {
			answers = append(answers, e.Output)
			thoughts = append(thoughts, e.Thought)
		}
	}
	if !reflect.DeepEqual(answers, []string{"", "hello"}) {
		t.Fatalf("answers %q", answers)
	}
	if !reflect.DeepEqual(thoughts, []string{"", "reasoning"}) {
		t.Fatalf("thoughts %q", thoughts)
	}
}

func TestGenerate_CompleteStripsPromptLine(t *testing.T) {
	m := &fakeModel{header: "<template prompt line>\n", chunks: []string{"The answer", " is 4.", "  "}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("2+2?")})
	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	if got := evs[len(evs)-1].Output; got != "The answer is 4." {
		t.Fatalf("complete %q", got)
	}
}

func TestCleanFinal(t *testing.T) {
	cases := map[string]string{
		"assistant\nThe answer is 4.": "The answer is 4.",
		"line\n\n  spaced out \n":     "spaced out",
		"no newline":                  "",
		"":                            "",
		"a\nmulti\nline":              "multi\nline",
	}
	for in, want := range cases {
		if got := CleanFinal(in); got != want {
			t.Fatalf("CleanFinal(%q) = %q want %q", in, got, want)
		}
	}
}

func TestGenerate_TokensPerSecond(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}
	m := &fakeModel{chunks: []string{"a", "b", "c"}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{Now: clock.Now})
	loadReady(t, w, pub)
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("x")})
	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	var ups []types.Event
	for _, e := range evs {
		if e.Status == types.EventUpdate {
			ups = append(ups, e)
		}
	}
	if len(ups) != 3 {
		t.Fatalf("want 3 updates, got %d", len(ups))
	}
	if ups[0].TPS != nil {
		t.Fatalf("tps must be null after one token, got %v", *ups[0].TPS)
	}
	if ups[1].TPS == nil || math.Abs(*ups[1].TPS-20) > 1e-9 {
		t.Fatalf("tps after two tokens 100ms apart should be 20, got %v", ups[1].TPS)
	}
	if ups[2].TPS == nil || math.Abs(*ups[2].TPS-15) > 1e-9 {
		t.Fatalf("tps after three tokens over 200ms should be 15, got %v", ups[2].TPS)
	}
}

func TestGenerate_RejectedWhenNotReady(t *testing.T) {
	w, pub := startWorker(t, &fakeProvider{}, Config{})
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("too early")})
	evs := forID(waitFor(t, pub, "error", has(types.EventError, id)), id)
	if len(evs) != 1 || evs[0].Class != types.ClassInvalidRequest {
		t.Fatalf("events %+v", evs)
	}
	if w.Status().Status != types.StatusInitializing {
		t.Fatalf("status changed to %s", w.Status().Status)
	}
}

func TestGenerate_RejectedWhenLastTurnIsNotUser(t *testing.T) {
	w, pub := startWorker(t, &fakeProvider{}, Config{})
	loadReady(t, w, pub)
	turns := []types.ChatTurn{{Role: types.RoleUser, Content: "q"}, {Role: types.RoleAssistant, Content: "a"}}
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: turns})
	evs := forID(waitFor(t, pub, "error", has(types.EventError, id)), id)
	if has(types.EventStart, id)(evs) || evs[0].Class != types.ClassInvalidRequest {
		t.Fatalf("events %+v", evs)
	}
}

func TestGenerate_TurnsBoundedByContextWindow(t *testing.T) {
	m := &fakeModel{chunks: []string{"ok"}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{ContextWindowSize: 10})
	loadReady(t, w, pub)
	var turns []types.ChatTurn
	for i := 0; i < 25; i++ {
		turns = append(turns, types.ChatTurn{Role: types.RoleUser, Content: string(rune('a' + i))})
	}
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: turns})
	waitFor(t, pub, "complete", has(types.EventComplete, id))
	got := m.lastInputs().Turns
	if !reflect.DeepEqual(got, turns[15:]) {
		t.Fatalf("model saw %d turns: %+v", len(got), got)
	}
}

func TestLastTurns(t *testing.T) {
	turns := userTurn("a")
	turns = append(turns, userTurn("b")...)
	turns = append(turns, userTurn("c")...)
	cases := []struct {
		n    int
		want int
	}{{0, 3}, {-1, 3}, {2, 2}, {3, 3}, {5, 3}}
	for _, c := range cases {
		got := lastTurns(turns, c.n)
		if len(got) != c.want || got[len(got)-1].Content != "c" {
			t.Fatalf("lastTurns(n=%d) = %+v", c.n, got)
		}
	}
}

func TestGenerate_SecondRequestRejectedWhileActive(t *testing.T) {
	m := &fakeModel{chunks: []string{"a", "b"}, gate: make(chan struct{})}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)

	first := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("one")})
	waitFor(t, pub, "start", has(types.EventStart, first))
	second := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("two")})
	waitFor(t, pub, "rejection", has(types.EventError, second))

	m.gate <- struct{}{}
	m.gate <- struct{}{}
	evs := waitFor(t, pub, "complete", has(types.EventComplete, first))

	if got := statuses(forID(evs, second)); !reflect.DeepEqual(got, []types.EventStatus{types.EventError}) {
		t.Fatalf("second request events %v", got)
	}
	firstEvs := forID(evs, first)
	if firstEvs[len(firstEvs)-1].Output != "ab" {
		t.Fatalf("first complete %+v", firstEvs[len(firstEvs)-1])
	}
}

func TestGenerate_InterruptYieldsOneComplete(t *testing.T) {
	m := &fakeModel{chunks: []string{"a", "b", "c", "d"}, gate: make(chan struct{})}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)

	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("go")})
	m.gate <- struct{}{}
	waitFor(t, pub, "first update", has(types.EventUpdate, id))
	send(t, w, types.Command{Type: types.CommandInterrupt})
	eventually(t, "interrupt applied", w.session.stop.Interrupted)
	m.gate <- struct{}{}

	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	got := statuses(evs)
	want := []types.EventStatus{types.EventStart, types.EventUpdate, types.EventComplete}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events %v", got)
	}
	if evs[2].Output != "a" {
		t.Fatalf("partial output %q", evs[2].Output)
	}
	if w.Status().Generating {
		t.Fatalf("still generating")
	}
}

func TestInterrupt_IdleIsNoop(t *testing.T) {
	w, pub := startWorker(t, &fakeProvider{model: &fakeModel{chunks: []string{"x"}}}, Config{})
	loadReady(t, w, pub)
	send(t, w, types.Command{Type: types.CommandInterrupt})
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("q")})
	evs := forID(waitFor(t, pub, "complete", has(types.EventComplete, id)), id)
	if evs[len(evs)-1].Output != "x" {
		t.Fatalf("generation after idle interrupt was cut short: %+v", evs)
	}
}

func TestGenerate_FailureKeepsReady(t *testing.T) {
	m := &fakeModel{chunks: []string{"a"}, err: errors.New("kernel panic in matmul")}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("q")})
	evs := forID(waitFor(t, pub, "error", has(types.EventError, id)), id)
	last := evs[len(evs)-1]
	if last.Class != types.ClassGenerationFailure {
		t.Fatalf("class %s", last.Class)
	}
	if has(types.EventComplete, id)(evs) {
		t.Fatalf("complete emitted after error")
	}
	if !w.Ready() {
		t.Fatalf("generation failure must not leave READY")
	}
}

func TestGenerate_CachePassedAndReset(t *testing.T) {
	m := &fakeModel{chunks: []string{"x"}}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{MaxNewTokens: 64})
	loadReady(t, w, pub)

	first := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("1")})
	waitFor(t, pub, "first", has(types.EventComplete, first))
	if !w.Status().CacheWarm {
		t.Fatalf("cache should be warm after a generation")
	}
	second := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("2")})
	waitFor(t, pub, "second", has(types.EventComplete, second))
	send(t, w, types.Command{Type: types.CommandReset})
	third := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("3")})
	waitFor(t, pub, "third", has(types.EventComplete, third))

	calls := m.params()[1:] // skip warm-up
	if calls[0].PastKeyValues != nil {
		t.Fatalf("first generation should start without cache")
	}
	if calls[1].PastKeyValues != engine.Cache(2) {
		t.Fatalf("second generation should reuse cache, got %v", calls[1].PastKeyValues)
	}
	if calls[2].PastKeyValues != nil {
		t.Fatalf("reset should clear cache, got %v", calls[2].PastKeyValues)
	}
	if calls[0].MaxNewTokens != 64 || calls[0].DoSample {
		t.Fatalf("params %+v", calls[0])
	}
}

func TestReset_DeferredWhileActive(t *testing.T) {
	m := &fakeModel{chunks: []string{"a"}, gate: make(chan struct{})}
	w, pub := startWorker(t, &fakeProvider{model: m}, Config{})
	loadReady(t, w, pub)
	id := send(t, w, types.Command{Type: types.CommandGenerate, Turns: userTurn("q")})
	waitFor(t, pub, "start", has(types.EventStart, id))
	send(t, w, types.Command{Type: types.CommandReset})
	eventually(t, "reset queued", func() bool {
		w.session.mu.Lock()
		defer w.session.mu.Unlock()
		return w.session.resetPending
	})
	m.gate <- struct{}{}
	waitFor(t, pub, "complete", has(types.EventComplete, id))
	if w.Status().CacheWarm {
		t.Fatalf("deferred reset should clear the cache when the generation ends")
	}
}
