package repository

import (
	"testing"
	"time"
)

func TestIntervalString(t *testing.T) {
	if got := intervalString(2 * time.Hour); got != "7200 seconds" {
		t.Fatalf("intervalString(2h) = %q", got)
	}
	if got := intervalString(90 * time.Second); got != "90 seconds" {
		t.Fatalf("intervalString(90s) = %q", got)
	}
}

func TestMarshalOrNil(t *testing.T) {
	if got, err := marshalOrNil(map[string]int64{}); err != nil || got != nil {
		t.Fatalf("empty metrics should marshal to nil, got %s (%v)", got, err)
	}
	if got, err := marshalOrNil(map[string]string{}); err != nil || got != nil {
		t.Fatalf("empty details should marshal to nil, got %s (%v)", got, err)
	}

	got, err := marshalOrNil(map[string]int64{"rows_processed": 3})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(got) != `{"rows_processed":3}` {
		t.Fatalf("unexpected json %s", got)
	}
}
