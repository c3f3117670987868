package events

import (
	"fmt"
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestChannelAttachDetach(t *testing.T) {
	ch := NewChannel()
	ch.Send(Event{JobID: "dropped", Status: StatusStart})

	rec := &recorder{}
	ch.Attach(rec)
	if !ch.Attached() {
		t.Fatal("expected listener attached")
	}
	ch.Send(Event{JobID: "a", Status: StatusStart})
	ch.Detach()
	ch.Send(Event{JobID: "a", Status: StatusEnd})

	got := rec.snapshot()
	if len(got) != 1 || got[0].JobID != "a" || got[0].Status != StatusStart {
		t.Errorf("events = %+v, want only the attached start", got)
	}
}

func TestChannelAttachReplaces(t *testing.T) {
	ch := NewChannel()
	first, second := &recorder{}, &recorder{}

	ch.Attach(first)
	ch.Attach(second)
	ch.Send(Event{Status: StatusProgress})

	if len(first.snapshot()) != 0 {
		t.Error("replaced listener still received events")
	}
	if len(second.snapshot()) != 1 {
		t.Error("current listener missed event")
	}
}

func TestChannelConcurrentSendersKeepPerJobOrder(t *testing.T) {
	ch := NewChannel()
	rec := &recorder{}
	ch.Attach(rec)

	const jobs, progressPerJob = 8, 50
	var wg sync.WaitGroup
	for j := 0; j < jobs; j++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ch.Send(Event{JobID: id, Status: StatusStart})
			for p := 0; p < progressPerJob; p++ {
				ch.Send(Event{JobID: id, Status: StatusProgress, Percent: p})
			}
			ch.Send(Event{JobID: id, Status: StatusEnd, Percent: 100})
		}(fmt.Sprintf("job-%d", j))
	}
	wg.Wait()

	perJob := map[string][]Event{}
	for _, e := range rec.snapshot() {
		perJob[e.JobID] = append(perJob[e.JobID], e)
	}
	if len(perJob) != jobs {
		t.Fatalf("got events for %d jobs, want %d", len(perJob), jobs)
	}
	for id, evs := range perJob {
		if evs[0].Status != StatusStart {
			t.Errorf("%s: first event %s", id, evs[0].Status)
		}
		if !evs[len(evs)-1].Terminal() {
			t.Errorf("%s: last event %s", id, evs[len(evs)-1].Status)
		}
		for i := 2; i < len(evs)-1; i++ {
			if evs[i].Percent < evs[i-1].Percent {
				t.Errorf("%s: progress out of order at %d", id, i)
			}
		}
	}
}

func TestHubFanOutAndFilter(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe("")
	onlyB := hub.Subscribe("b")
	defer hub.Unsubscribe(all)
	defer hub.Unsubscribe(onlyB)

	hub.OnEvent(Event{JobID: "a", Status: StatusStart})
	hub.OnEvent(Event{JobID: "b", Status: StatusStart})

	if got := len(all); got != 2 {
		t.Errorf("unfiltered subscriber got %d events, want 2", got)
	}
	if got := len(onlyB); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	if e := <-onlyB; e.JobID != "b" {
		t.Errorf("filtered subscriber got job %q", e.JobID)
	}
}

func TestHubDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.OnEvent(Event{JobID: "x", Status: StatusProgress, Percent: i % 100})
	}
	if got := len(sub); got != progressHighWater {
		t.Errorf("buffered %d progress events, want %d", got, progressHighWater)
	}

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub) // second call is a no-op
	if hub.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after unsubscribe", hub.Subscribers())
	}
}

func TestHubDeliversTerminalToFullSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")
	defer hub.Unsubscribe(sub)

	// Lifecycle events alone can fill every slot.
	for i := 0; i < subscriberBuffer; i++ {
		hub.OnEvent(Event{JobID: fmt.Sprintf("job-%d", i), Status: StatusStart})
	}
	if got := len(sub); got != subscriberBuffer {
		t.Fatalf("buffered %d events, want %d", got, subscriberBuffer)
	}

	hub.OnEvent(Event{JobID: "x", Status: StatusProgress, Percent: 10})
	hub.OnEvent(Event{JobID: "x", Status: StatusEnd, Percent: 100})

	var last Event
	n := 0
	for len(sub) > 0 {
		last = <-sub
		if last.Status == StatusProgress {
			t.Error("progress event queued on a full subscriber")
		}
		n++
	}
	if n != subscriberBuffer {
		t.Errorf("drained %d events, want %d", n, subscriberBuffer)
	}
	if last.JobID != "x" || last.Status != StatusEnd {
		t.Errorf("last event = %+v, want end for job x", last)
	}
}

func TestHubTerminalAfterProgressFlood(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("x")
	defer hub.Unsubscribe(sub)

	hub.OnEvent(Event{JobID: "x", Status: StatusStart})
	for i := 0; i < subscriberBuffer*2; i++ {
		hub.OnEvent(Event{JobID: "x", Status: StatusProgress, Percent: i / 2})
	}
	hub.OnEvent(Event{JobID: "x", Status: StatusError, Error: "boom"})

	var got []Event
	for len(sub) > 0 {
		got = append(got, <-sub)
	}
	if got[0].Status != StatusStart {
		t.Errorf("first event = %s, want start", got[0].Status)
	}
	if last := got[len(got)-1]; last.Status != StatusError || last.Error != "boom" {
		t.Errorf("last event = %+v, want the error", last)
	}
}

func TestHubAsChannelListener(t *testing.T) {
	ch := NewChannel()
	hub := NewHub()
	ch.Attach(hub)

	sub := hub.Subscribe("")
	defer hub.Unsubscribe(sub)

	ch.Send(Event{JobID: "j", Status: StatusEnd, Percent: 100})
	e := <-sub
	if !e.Terminal() || e.Percent != 100 {
		t.Errorf("unexpected event %+v", e)
	}
}
