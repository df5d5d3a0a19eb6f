package events

import (
	"testing"
	"time"
)

func TestSubscribeByTopic(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	runCh := bus.Subscribe(TopicRun, 8)
	taskCh := bus.Subscribe(TopicTask, 8)

	bus.Publish(TopicRun, RunStartedEvent{Run: "r1", TaskCount: 3})
	bus.Publish(TopicTask, TaskStartedEvent{Run: "r1", ID: "t1", Attempt: 1})

	select {
	case event := <-runCh:
		started, ok := event.(RunStartedEvent)
		if !ok || started.TaskCount != 3 {
			t.Errorf("run subscriber got %#v, want the RunStartedEvent", event)
		}
	case <-time.After(time.Second):
		t.Fatal("run subscriber received nothing")
	}

	select {
	case event := <-taskCh:
		if event.TaskID() != "t1" {
			t.Errorf("task subscriber got task %q, want t1", event.TaskID())
		}
	case <-time.After(time.Second):
		t.Fatal("task subscriber received nothing")
	}

	// Topics are isolated
	select {
	case event := <-runCh:
		t.Errorf("run subscriber received a task-topic event: %#v", event)
	default:
	}
}

func TestSubscribeRunFiltersByRunID(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeRun("r1", 8)

	bus.Publish(TopicTask, TaskStartedEvent{Run: "r1", ID: "mine"})
	bus.Publish(TopicTask, TaskStartedEvent{Run: "r2", ID: "other"})
	bus.Publish(TopicRun, RunCompletedEvent{Run: "r1", Status: "success"})

	var got []Event
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case event := <-ch:
			got = append(got, event)
		case <-timeout:
			t.Fatalf("received %d events, want 2", len(got))
		}
	}

	for _, event := range got {
		if event.RunID() != "r1" {
			t.Errorf("run subscriber leaked event for run %q", event.RunID())
		}
	}
	select {
	case event := <-ch:
		t.Errorf("unexpected extra event: %#v", event)
	default:
	}
}

func TestSubscribeAllSeesEveryTopic(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.SubscribeAll(8)

	bus.Publish(TopicRun, RunStartedEvent{Run: "r1"})
	bus.Publish(TopicTask, TaskSucceededEvent{Run: "r1", ID: "t1"})

	types := map[string]bool{}
	timeout := time.After(time.Second)
	for len(types) < 2 {
		select {
		case event := <-ch:
			types[event.EventType()] = true
		case <-timeout:
			t.Fatalf("saw %v, want both event types", types)
		}
	}
	if !types[EventTypeRunStarted] || !types[EventTypeTaskSucceeded] {
		t.Errorf("saw %v, want run.started and task.succeeded", types)
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(TopicTask, TaskStartedEvent{Run: "r1", ID: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	// The buffered event is still deliverable
	select {
	case event := <-ch:
		if event.TaskID() != "flood" {
			t.Errorf("got %#v, want the buffered event", event)
		}
	default:
		t.Error("subscriber channel is empty, want one buffered event")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicRun, 4)

	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Error("subscriber channel still open after Close")
	}

	// Publishing and subscribing after close are safe no-ops
	bus.Publish(TopicRun, RunStartedEvent{Run: "r1"})
	late := bus.Subscribe(TopicRun, 4)
	if _, open := <-late; open {
		t.Error("subscription after Close returned an open channel")
	}
}

func TestEventAccessors(t *testing.T) {
	tests := []struct {
		event     Event
		eventType string
		runID     string
		taskID    string
	}{
		{RunStartedEvent{Run: "r"}, EventTypeRunStarted, "r", ""},
		{RunProgressEvent{Run: "r"}, EventTypeRunProgress, "r", ""},
		{RunCompletedEvent{Run: "r"}, EventTypeRunCompleted, "r", ""},
		{TaskStartedEvent{Run: "r", ID: "t"}, EventTypeTaskStarted, "r", "t"},
		{TaskSucceededEvent{Run: "r", ID: "t"}, EventTypeTaskSucceeded, "r", "t"},
		{TaskFailedEvent{Run: "r", ID: "t"}, EventTypeTaskFailed, "r", "t"},
		{TaskRetryingEvent{Run: "r", ID: "t"}, EventTypeTaskRetrying, "r", "t"},
		{TaskSkippedEvent{Run: "r", ID: "t"}, EventTypeTaskSkipped, "r", "t"},
		{TaskCancelledEvent{Run: "r", ID: "t"}, EventTypeTaskCancelled, "r", "t"},
	}

	for _, tt := range tests {
		if tt.event.EventType() != tt.eventType {
			t.Errorf("%T.EventType() = %q, want %q", tt.event, tt.event.EventType(), tt.eventType)
		}
		if tt.event.RunID() != tt.runID {
			t.Errorf("%T.RunID() = %q, want %q", tt.event, tt.event.RunID(), tt.runID)
		}
		if tt.event.TaskID() != tt.taskID {
			t.Errorf("%T.TaskID() = %q, want %q", tt.event, tt.event.TaskID(), tt.taskID)
		}
	}
}
