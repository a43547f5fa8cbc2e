package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/matsen/versiondiff/internal/compare"
	"github.com/matsen/versiondiff/internal/diff"
	"github.com/matsen/versiondiff/internal/gitlab"
)

// Display limits for human output.
const (
	SubjectMaxLen  = 72 // commit subject in change tables
	SampleTasksMax = 5  // sample task ids in stats output
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetHeaderLine(true)
	t.SetColumnSeparator(" ")
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func seconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond).String()
}

func writeSummaryHuman(w io.Writer, s compare.Summary) {
	fmt.Fprintf(w, "%s -> %s  [%s]\n", s.OldRef, s.NewRef, s.Status)
	for _, ref := range []compare.RefSummary{s.Old, s.New} {
		fmt.Fprintf(w, "  %-20s %s commits, %s tasks, %d pages (%s)\n",
			ref.Ref,
			humanize.Comma(int64(ref.Commits)),
			humanize.Comma(int64(ref.Tasks)),
			ref.Pages,
			ref.Outcome)
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	fmt.Fprintf(w, "  fetched in %s, analysed in %s, cache saved %s\n",
		seconds(s.Timings.Fetch),
		seconds(s.Timings.Analysis),
		humanize.Comma(int64(s.Cache.CallsSaved))+" calls")
	for _, tr := range s.Truncated {
		fmt.Fprintf(w, "  truncated %s: showing %d of %d\n", tr.Field, tr.Kept, tr.Original)
	}
}

func writeTaskList(w io.Writer, title string, tasks []string) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(tasks))
	if len(tasks) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(tasks, ", "))
}

func writeChanges(w io.Writer, title string, changes map[string][]diff.Change) {
	fmt.Fprintf(w, "\n%s (%d)\n", title, len(changes))
	if len(changes) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}

	tasks := make([]string, 0, len(changes))
	for task := range changes {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	t := newTable(w, "Task", "Commit", "Date", "Subject")
	for _, task := range tasks {
		for _, c := range changes[task] {
			t.Append([]string{task, c.ShortID, shortDate(c.CommittedDate), truncateString(c.Line, SubjectMaxLen)})
		}
	}
	t.Render()
}

func writeMissingHuman(w io.Writer, r *compare.MissingReport) {
	writeSummaryHuman(w, r.Summary)
	writeTaskList(w, "Completely missing", r.CompletelyMissing)
	writeChanges(w, "Partially missing", r.PartiallyMissing)
}

func writeNewFeaturesHuman(w io.Writer, r *compare.NewFeaturesReport) {
	writeSummaryHuman(w, r.Summary)
	writeTaskList(w, "Completely new", r.CompletelyNew)
	writeChanges(w, "Partially new", r.PartiallyNew)
}

func writeCompareHuman(w io.Writer, r *compare.Report) {
	writeSummaryHuman(w, r.Summary)
	writeTaskList(w, "Completely missing", r.Diff.CompletelyMissing)
	writeChanges(w, "Partially missing", r.Diff.PartiallyMissing)
	writeTaskList(w, "Completely new", r.Diff.CompletelyNew)
	writeChanges(w, "Partially new", r.Diff.PartiallyNew)
	fmt.Fprintf(w, "\nCommon tasks: %s\n", humanize.Comma(int64(len(r.Diff.CommonTaskIDs))))
}

func writeValidationHuman(w io.Writer, results []compare.RefValidation) {
	t := newTable(w, "Ref", "Exists", "Tag", "Pages", "Error")
	for _, v := range results {
		pages := fmt.Sprint(v.Pages)
		if v.Exists && !v.Exact {
			pages += "+"
		}
		t.Append([]string{v.Ref, yesNo(v.Exists), yesNo(v.IsTag), pages, v.Error})
	}
	t.Render()
}

func writeStatsHuman(w io.Writer, s *compare.RefStats) {
	fmt.Fprintf(w, "%s  [%s]\n", s.Ref, s.Outcome)
	fmt.Fprintf(w, "  commits:          %s\n", humanize.Comma(int64(s.Commits)))
	fmt.Fprintf(w, "  with tasks:       %s\n", humanize.Comma(int64(s.CommitsWithTasks)))
	fmt.Fprintf(w, "  without tasks:    %s\n", humanize.Comma(int64(s.CommitsWithoutTask)))
	fmt.Fprintf(w, "  distinct tasks:   %s\n", humanize.Comma(int64(s.Tasks)))
	fmt.Fprintf(w, "  tasks per commit: %s\n", humanize.FormatFloat("#,###.##", s.TaskDensity))
	if len(s.SampleTasks) > 0 {
		sample := s.SampleTasks
		if len(sample) > SampleTasksMax {
			sample = sample[:SampleTasksMax]
		}
		fmt.Fprintf(w, "  sample:           %s\n", strings.Join(sample, ", "))
	}
	if s.Partial {
		fmt.Fprintf(w, "  warning: pages %v failed; counts may be low\n", s.FailedPages)
	}
	fmt.Fprintf(w, "  fetched in %s\n", seconds(s.FetchTime))
}

func writeTagsHuman(w io.Writer, tags []gitlab.Tag) {
	t := newTable(w, "Tag", "Commit", "Date", "Age")
	for _, tag := range tags {
		age := ""
		if ts, err := time.Parse(time.RFC3339, tag.Commit.CommittedDate); err == nil {
			age = humanize.Time(ts)
		}
		t.Append([]string{tag.Name, shortID(tag.Commit.ID), shortDate(tag.Commit.CommittedDate), age})
	}
	t.Render()
}

func writeTaskReportHuman(w io.Writer, r *compare.TaskReport) {
	fmt.Fprintf(w, "%s  [%s]  %s commits, %d of %d tasks found\n",
		r.Ref, r.Outcome, humanize.Comma(int64(r.Commits)), r.Found, len(r.Tasks))
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if len(r.Tasks) == 0 {
		fmt.Fprintln(w, "  no matching tasks")
		return
	}

	t := newTable(w, "Task", "Status", "Changes", "First", "Latest", "Author", "Subject")
	for _, d := range r.Tasks {
		if d.Status != compare.TaskFound {
			t.Append([]string{d.TaskID, string(d.Status), "", "", "", "", ""})
			continue
		}
		t.Append([]string{
			d.TaskID,
			string(d.Status),
			fmt.Sprint(len(d.Changes)),
			d.First.ShortID + " " + shortDate(d.First.CommittedDate),
			d.Latest.ShortID + " " + shortDate(d.Latest.CommittedDate),
			d.First.AuthorName,
			truncateString(d.First.Line, SubjectMaxLen),
		})
	}
	t.Render()
}

func writeBatchHuman(w io.Writer, b *compare.BatchReport) {
	fmt.Fprintf(w, "%d compared, %d failed in %s\n", b.Successful, b.Failed, seconds(b.Total))

	t := newTable(w, "Old", "New", "Status", "Missing", "Partial", "New tasks", "Error")
	for _, r := range b.Results {
		t.Append([]string{
			r.OldRef,
			r.NewRef,
			string(r.Status),
			fmt.Sprint(r.Counts.Missing),
			fmt.Sprint(r.Counts.PartiallyMissing),
			fmt.Sprint(r.Counts.New),
			"",
		})
	}
	for _, f := range b.Failures {
		t.Append([]string{f.Old, f.New, "failed", "", "", "", truncateString(f.Error, SubjectMaxLen)})
	}
	t.Render()
}

func writeSuggestionsHuman(w io.Writer, current string, suggestions []compare.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintf(w, "%s is the newest version\n", current)
		return
	}
	fmt.Fprintf(w, "Upgrades from %s:\n", current)
	t := newTable(w, "Tag", "Date", "Age")
	for _, sg := range suggestions {
		age := ""
		if ts, err := time.Parse(time.RFC3339, sg.CommittedDate); err == nil {
			age = humanize.Time(ts)
		}
		t.Append([]string{sg.Tag, shortDate(sg.CommittedDate), age})
	}
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDate(iso string) string {
	if len(iso) >= 10 {
		return iso[:10]
	}
	return iso
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
