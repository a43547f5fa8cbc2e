package taskindex

import "github.com/matsen/versiondiff/internal/commit"

// sampleSize caps Summary.SampleTasks.
const sampleSize = 5

// Summary describes how densely a commit list references tasks.
type Summary struct {
	Commits            int      `json:"total_commits"`
	CommitsWithTasks   int      `json:"commits_with_tasks"`
	CommitsWithoutTask int      `json:"commits_without_tasks"`
	Tasks              int      `json:"total_tasks"`
	Keys               int      `json:"identity_keys"`
	TaskDensity        float64  `json:"task_density"` // distinct tasks per commit
	SampleTasks        []string `json:"sample_tasks"`
}

// Summarize counts task references in commits and indexes them.
func (b *Builder) Summarize(commits []commit.Record) (Summary, *Index) {
	s := Summary{Commits: len(commits)}
	for _, c := range commits {
		if len(b.Extract(c.Message)) > 0 {
			s.CommitsWithTasks++
		} else {
			s.CommitsWithoutTask++
		}
	}

	ix := b.Build(commits)
	tasks := ix.Tasks()
	s.Tasks = len(tasks)
	s.Keys = ix.Len()
	if s.Commits > 0 {
		s.TaskDensity = float64(s.Tasks) / float64(s.Commits)
	}
	if len(tasks) > sampleSize {
		tasks = tasks[:sampleSize]
	}
	s.SampleTasks = tasks
	return s, ix
}
