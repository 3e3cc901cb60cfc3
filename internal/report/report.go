// Package report implements the Report Aggregator (spec 4.H): grouping
// per-stream direct/delegated totals by tag, plus named reporting periods.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/sjawhar/worklog/internal/attr"
	"github.com/sjawhar/worklog/internal/scheduler"
)

// Untagged is the sentinel group for streams carrying no tags.
const Untagged = "untagged"

// TagGroup is one row of a report: a tag (or Untagged) and the streams
// contributing to it.
type TagGroup struct {
	Tag         string
	DirectMs    int64
	DelegatedMs int64
	Streams     []string
}

// Summary is the full aggregation: per-tag groups plus header totals
// summed once per stream, so a multi-tagged stream is not double-counted
// at the top even though it appears in every one of its tags' groups.
type Summary struct {
	Groups           []TagGroup
	TotalDirectMs    int64
	TotalDelegatedMs int64
}

// ByTag groups totals (stream id -> direct/delegated ms) by the tag set in
// tags (stream id -> tags). A stream with no tags is grouped under
// Untagged. Groups sort by (direct+delegated) descending; Untagged always
// sorts last regardless of its magnitude.
func ByTag(totals map[string]attr.Totals, tags map[string][]string) Summary {
	groups := map[string]*TagGroup{}
	group := func(tag string) *TagGroup {
		g, ok := groups[tag]
		if !ok {
			g = &TagGroup{Tag: tag}
			groups[tag] = g
		}
		return g
	}

	var sum Summary
	for streamID, t := range totals {
		sum.TotalDirectMs += t.DirectMs
		sum.TotalDelegatedMs += t.DelegatedMs

		streamTags := tags[streamID]
		if len(streamTags) == 0 {
			streamTags = []string{Untagged}
		}
		for _, tag := range streamTags {
			g := group(tag)
			g.DirectMs += t.DirectMs
			g.DelegatedMs += t.DelegatedMs
			g.Streams = append(g.Streams, streamID)
		}
	}

	out := make([]TagGroup, 0, len(groups))
	for _, g := range groups {
		sort.Strings(g.Streams)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tag == Untagged {
			return false
		}
		if out[j].Tag == Untagged {
			return true
		}
		si, sj := out[i].DirectMs+out[i].DelegatedMs, out[j].DirectMs+out[j].DelegatedMs
		if si != sj {
			return si > sj
		}
		return out[i].Tag < out[j].Tag
	})
	sum.Groups = out
	return sum
}

// periodCron maps a named reporting period to the cron expression marking
// its boundary, reusing the robfig/cron schedule already wired for
// `worklog watch` rather than hand-rolling calendar math.
var periodCron = map[string]string{
	"day":  "0 0 * * *",
	"week": "0 0 * * 1",
}

// sprintEpoch anchors the two-week sprint cadence; cron has no native
// biweekly field, so sprint boundaries are computed as a fixed stride from
// this Monday instead of through scheduler.CronExpr.
var sprintEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Period returns the [start, end) boundary of the named period ("day",
// "week", or "sprint") containing t, for `worklog report`'s default
// grouping window.
func Period(name string, t time.Time) (time.Time, time.Time, error) {
	if name == "sprint" {
		start := sprintBoundary(t)
		return start, start.Add(14 * 24 * time.Hour), nil
	}

	expr, ok := periodCron[name]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("report: unknown period %q", name)
	}
	sched, err := scheduler.ParseCron(expr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("report: period %q: %w", name, err)
	}

	var start time.Time
	probe := t.Add(-7 * 24 * time.Hour)
	for {
		next := sched.Next(probe)
		if next.After(t) {
			break
		}
		start = next
		probe = next
	}
	return start, sched.Next(start), nil
}

func sprintBoundary(t time.Time) time.Time {
	days := int(t.UTC().Sub(sprintEpoch).Hours() / 24)
	sprintIndex := days / 14
	return sprintEpoch.Add(time.Duration(sprintIndex*14*24) * time.Hour)
}
