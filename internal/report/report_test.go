package report

import (
	"testing"
	"time"

	"github.com/sjawhar/worklog/internal/attr"
)

func TestByTag_GroupsAndSortsWithUntaggedLast(t *testing.T) {
	totals := map[string]attr.Totals{
		"s1": {DirectMs: 1000, DelegatedMs: 0},
		"s2": {DirectMs: 500, DelegatedMs: 500},
		"s3": {DirectMs: 100},
	}
	tags := map[string][]string{
		"s1": {"work"},
		"s2": {"work", "urgent"},
	}

	sum := ByTag(totals, tags)

	if sum.TotalDirectMs != 1600 || sum.TotalDelegatedMs != 500 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if len(sum.Groups) != 3 {
		t.Fatalf("expected 3 groups (work, urgent, untagged), got %d: %+v", len(sum.Groups), sum.Groups)
	}
	if sum.Groups[len(sum.Groups)-1].Tag != Untagged {
		t.Fatalf("expected untagged group last, got %+v", sum.Groups)
	}

	var work TagGroup
	for _, g := range sum.Groups {
		if g.Tag == "work" {
			work = g
		}
	}
	if work.DirectMs != 1500 || work.DelegatedMs != 500 {
		t.Fatalf("expected work group to sum s1+s2, got %+v", work)
	}
}

func TestByTag_EmptyTotals(t *testing.T) {
	sum := ByTag(map[string]attr.Totals{}, map[string][]string{})
	if len(sum.Groups) != 0 || sum.TotalDirectMs != 0 {
		t.Fatalf("expected empty summary, got %+v", sum)
	}
}

func TestPeriod_Day(t *testing.T) {
	noon := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	start, end, err := Period("day", noon)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	wantStart := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected start %s, got %s", wantStart, start)
	}
	if !end.Equal(wantStart.Add(24 * time.Hour)) {
		t.Fatalf("expected end 24h after start, got %s", end)
	}
}

func TestPeriod_Week(t *testing.T) {
	// 2025-06-12 is a Thursday; the week boundary (Monday) is 2025-06-09.
	thursday := time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC)
	start, end, err := Period("week", thursday)
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	wantStart := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected week start %s, got %s", wantStart, start)
	}
	if !end.Equal(wantStart.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected end one week after start, got %s", end)
	}
}

func TestPeriod_Sprint(t *testing.T) {
	start1, end1, err := Period("sprint", sprintEpoch.Add(3*24*time.Hour))
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if !start1.Equal(sprintEpoch) {
		t.Fatalf("expected sprint start at epoch, got %s", start1)
	}
	if !end1.Equal(sprintEpoch.Add(14 * 24 * time.Hour)) {
		t.Fatalf("expected sprint end 14 days later, got %s", end1)
	}

	start2, _, err := Period("sprint", sprintEpoch.Add(20*24*time.Hour))
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if !start2.Equal(sprintEpoch.Add(14 * 24 * time.Hour)) {
		t.Fatalf("expected second sprint to start 14 days after epoch, got %s", start2)
	}
}

func TestPeriod_UnknownName(t *testing.T) {
	if _, _, err := Period("fortnight", time.Now()); err == nil {
		t.Fatal("expected an error for an unrecognized period name")
	}
}
