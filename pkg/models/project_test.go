package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPositiveCounts(t *testing.T) {
	counts := []TaskCount{
		{ProjectID: "p1", Count: 3},
		{ProjectID: "p2", Count: 0},
		{ProjectID: "p3", Count: 1},
	}

	got := PositiveCounts(counts)
	if len(got) != 2 {
		t.Fatalf("Expected 2 positive counts, got %d", len(got))
	}
	if got[0].ProjectID != "p1" || got[1].ProjectID != "p3" {
		t.Errorf("Expected order p1, p3, got %s, %s", got[0].ProjectID, got[1].ProjectID)
	}
}

func TestPositiveCounts_AllZero(t *testing.T) {
	got := PositiveCounts([]TaskCount{{ProjectID: "p1"}, {ProjectID: "p2"}})
	if len(got) != 0 {
		t.Errorf("Expected no positive counts, got %d", len(got))
	}
}

func TestNotificationState_Clone(t *testing.T) {
	now := time.Now()
	state := NotificationState{"p1": now}

	clone := state.Clone()
	clone["p2"] = now

	if _, ok := state["p2"]; ok {
		t.Error("Expected clone mutation not to affect original state")
	}
	if !clone["p1"].Equal(now) {
		t.Error("Expected clone to keep existing entries")
	}
}

func TestNotificationState_IDs(t *testing.T) {
	state := NotificationState{"b": time.Time{}, "a": time.Time{}}
	ids := state.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected sorted IDs [a b], got %v", ids)
	}
}

func TestTaskCount_UnmarshalNumbers(t *testing.T) {
	body := []byte(`[
		{"projectId":"p1","count":3},
		{"projectId":"p2","count":3.0},
		{"projectId":"p3","count":0.5},
		{"projectId":"p4","count":0},
		{"projectId":"p5","count":null},
		{"projectId":"p6","extra":true}
	]`)

	var counts []TaskCount
	if err := json.Unmarshal(body, &counts); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []TaskCount{
		{ProjectID: "p1", Count: 3},
		{ProjectID: "p2", Count: 3},
		{ProjectID: "p3", Count: 1},
		{ProjectID: "p4", Count: 0},
		{ProjectID: "p5", Count: 0},
		{ProjectID: "p6", Count: 0},
	}
	if len(counts) != len(expected) {
		t.Fatalf("Expected %d counts, got %d", len(expected), len(counts))
	}
	for i := range expected {
		if counts[i] != expected[i] {
			t.Errorf("Expected %+v, got %+v", expected[i], counts[i])
		}
	}
}

func TestTaskCount_UnmarshalRejectsNonNumericCount(t *testing.T) {
	var c TaskCount
	if err := json.Unmarshal([]byte(`{"projectId":"p1","count":"many"}`), &c); err == nil {
		t.Error("Expected error for a non-numeric count")
	}
}
