package model

import (
	"math"
	"time"
)

type TaskStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Todo           int     `json:"todo"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

// ComputeStats counts tasks per status. CompletionRate is a percentage rounded to one decimal.
func ComputeStats(tasks []Task, now time.Time) TaskStats {
	var s TaskStats
	for _, t := range tasks {
		s.Total++
		switch t.Status {
		case StatusCompleted:
			s.Completed++
		case StatusInProgress:
			s.InProgress++
		case StatusTodo:
			s.Todo++
		}
		if t.IsOverdue(now) {
			s.Overdue++
		}
	}
	s.CompletionRate = CompletionRate(s.Completed, s.Total)
	return s
}

func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
