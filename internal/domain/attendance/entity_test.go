package attendance

import "testing"

func TestStatusAfter(t *testing.T) {
	cases := []struct {
		name  string
		types []EventType
		want  Status
	}{
		{"clock in only", []EventType{EventClockIn}, StatusWorking},
		{"on break", []EventType{EventClockIn, EventBreakStart}, StatusBreak},
		{"back from break", []EventType{EventClockIn, EventBreakStart, EventBreakEnd}, StatusWorking},
		{"overtime", []EventType{EventClockIn, EventOvertimeStart}, StatusOvertime},
		{"client visit", []EventType{EventClockIn, EventClientVisitStart}, StatusClientVisit},
		{"completed", []EventType{EventClockIn, EventBreakStart, EventClockOut}, StatusCompleted},
	}

	for _, c := range cases {
		var events []ActivityEvent
		for _, typ := range c.types {
			events = append(events, ActivityEvent{Type: typ})
		}
		if got := StatusAfter(events); got != c.want {
			t.Errorf("%s: StatusAfter = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestBreakUsed(t *testing.T) {
	fresh := []ActivityEvent{{Type: EventClockIn}}
	if BreakUsed(fresh) {
		t.Error("BreakUsed = true before any break_start")
	}

	used := append(fresh, ActivityEvent{Type: EventBreakStart}, ActivityEvent{Type: EventBreakEnd})
	if !BreakUsed(used) {
		t.Error("BreakUsed = false after break_start")
	}
}

func TestEventTypeValid(t *testing.T) {
	if !EventClientVisitEnd.Valid() {
		t.Error("client_visit_end rejected")
	}
	if EventType("lunch").Valid() {
		t.Error("unknown event type accepted")
	}
}
