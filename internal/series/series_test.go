package series

import (
	"testing"
	"time"
)

func ts(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestExpandNonRecurring(t *testing.T) {
	s := &ActivitySeries{ID: "oneoff", Recurrence: None, StartTime: ts(2024, time.June, 15, 18)}

	ids, err := Expand(s, ts(2024, time.June, 1, 0), ts(2024, time.June, 30, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(ids))
	}
	if ids[0].String() != "oneoff" {
		t.Errorf("one-off occurrence id should be the bare series id, got %q", ids[0].String())
	}

	ids, err = Expand(s, ts(2024, time.July, 1, 0), ts(2024, time.July, 31, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("out-of-window one-off expanded to %d occurrences", len(ids))
	}
}

func TestExpandWeekly(t *testing.T) {
	// Tuesdays and Thursdays, starting Tue 2024-06-04.
	s := &ActivitySeries{
		ID:         "u12-training",
		Recurrence: Weekly,
		Weekdays:   []time.Weekday{time.Tuesday, time.Thursday},
		StartTime:  ts(2024, time.June, 4, 17),
	}

	ids, err := Expand(s, ts(2024, time.June, 4, 0), ts(2024, time.June, 14, 0))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"u12-training-20240604",
		"u12-training-20240606",
		"u12-training-20240611",
		"u12-training-20240613",
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %v", len(ids), len(want), ids)
	}
	for i, w := range want {
		if ids[i].String() != w {
			t.Errorf("occurrence %d: got %q, want %q", i, ids[i].String(), w)
		}
	}
}

func TestExpandRespectsEndDate(t *testing.T) {
	end := ts(2024, time.June, 10, 23)
	s := &ActivitySeries{
		ID:         "short",
		Recurrence: Daily,
		StartTime:  ts(2024, time.June, 8, 9),
		EndDate:    &end,
	}

	ids, err := Expand(s, ts(2024, time.June, 1, 0), ts(2024, time.June, 30, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d occurrences, want 3 (8th, 9th, 10th): %v", len(ids), ids)
	}
	if last := ids[len(ids)-1].String(); last != "short-20240610" {
		t.Errorf("last occurrence %q exceeds end date", last)
	}
}

func TestExpandMonthly(t *testing.T) {
	s := &ActivitySeries{
		ID:         "league-game",
		Recurrence: Monthly,
		StartTime:  ts(2024, time.January, 15, 14),
	}

	ids, err := Expand(s, ts(2024, time.January, 1, 0), ts(2024, time.March, 31, 0))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"league-game-20240115", "league-game-20240215", "league-game-20240315"}
	if len(ids) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(ids), len(want))
	}
	for i, w := range want {
		if ids[i].String() != w {
			t.Errorf("occurrence %d: got %q, want %q", i, ids[i].String(), w)
		}
	}
}

func TestExpandBadWindow(t *testing.T) {
	s := &ActivitySeries{ID: "x", Recurrence: Daily, StartTime: ts(2024, time.June, 1, 9)}
	if _, err := Expand(s, ts(2024, time.June, 10, 0), ts(2024, time.June, 1, 0)); err == nil {
		t.Error("inverted window accepted")
	}
}

func TestExpandUnknownRecurrence(t *testing.T) {
	s := &ActivitySeries{ID: "x", Recurrence: "yearly", StartTime: ts(2024, time.June, 1, 9)}
	if _, err := Expand(s, ts(2024, time.June, 1, 0), ts(2024, time.June, 30, 0)); err == nil {
		t.Error("unknown recurrence accepted")
	}
}
