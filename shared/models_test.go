package shared

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPersonalQueueEventDecodesKind(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    PersonalEventKind
	}{
		{"entered", `{"enteredAt":"2026-03-01T20:00:00Z","message":"your turn"}`, PersonalEntered},
		{"expired", `{"expiredAt":"2026-03-01T20:15:00Z","message":"time is up"}`, PersonalExpired},
		{"completed", `{"completedAt":"2026-03-01T20:10:00Z","message":"enjoy the show"}`, PersonalCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ev PersonalQueueEvent
			if err := json.Unmarshal([]byte(tc.payload), &ev); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if ev.Kind != tc.want {
				t.Errorf("Kind = %q, want %q", ev.Kind, tc.want)
			}
			if ev.OccurredAt.IsZero() {
				t.Error("OccurredAt is zero")
			}
			if ev.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestPersonalQueueEventRejectsAmbiguousPayloads(t *testing.T) {
	payloads := []string{
		`{"message":"no timestamp"}`,
		`{"enteredAt":"2026-03-01T20:00:00Z","expiredAt":"2026-03-01T20:15:00Z","message":"both"}`,
	}
	for _, payload := range payloads {
		var ev PersonalQueueEvent
		if err := json.Unmarshal([]byte(payload), &ev); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", payload)
		}
	}
}

func TestPersonalQueueEventRoundTrip(t *testing.T) {
	ev := PersonalQueueEvent{
		Kind:       PersonalEntered,
		OccurredAt: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		Message:    "your turn",
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got PersonalQueueEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Kind != PersonalEntered || !got.OccurredAt.Equal(ev.OccurredAt) || got.Message != ev.Message {
		t.Errorf("round trip = %+v, want %+v", got, ev)
	}
}

func TestDestinationHelpers(t *testing.T) {
	if got := PersonalQueueTopic("u-42"); got != "/topic/users/u-42/queue" {
		t.Errorf("PersonalQueueTopic = %q", got)
	}
	if got := EventQueueTopic("concert-1"); got != "/topic/events/concert-1/queue" {
		t.Errorf("EventQueueTopic = %q", got)
	}
	if got := EventSeatTopic("concert-1"); got != "/topic/events/concert-1/seats" {
		t.Errorf("EventSeatTopic = %q", got)
	}
}
