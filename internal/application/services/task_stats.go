package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/ports"
)

// GetStats aggregates task counters for administrators. The six queries run concurrently.
func (s *TaskService) GetStats(ctx context.Context, actor entities.Actor) (*ports.TaskStats, error) {
	if !actor.IsAdmin() {
		return nil, entities.ErrAdminOnly
	}

	done := entities.TaskStatusDone
	now := s.Now()

	var (
		stats      ports.TaskStats
		byStatus   map[entities.TaskStatus]int64
		byPriority map[entities.Priority]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Total, err = s.taskRepo.Count(gctx, ports.TaskFilter{})
		return err
	})
	g.Go(func() (err error) {
		stats.Completed, err = s.taskRepo.Count(gctx, ports.TaskFilter{Status: &done})
		return err
	})
	g.Go(func() (err error) {
		stats.Pending, err = s.taskRepo.Count(gctx, ports.TaskFilter{ExcludeStatus: &done})
		return err
	})
	g.Go(func() (err error) {
		stats.Overdue, err = s.taskRepo.Count(gctx, ports.TaskFilter{ExcludeStatus: &done, DeadlineBefore: &now})
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.taskRepo.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		byPriority, err = s.taskRepo.CountByPriority(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute task stats: %w", err)
	}

	stats.StatusCount = make(map[entities.TaskStatus]int64, len(entities.TaskStatuses))
	for _, st := range entities.TaskStatuses {
		stats.StatusCount[st] = byStatus[st]
	}
	stats.PriorityCount = make(map[entities.Priority]int64, len(entities.Priorities))
	for _, p := range entities.Priorities {
		stats.PriorityCount[p] = byPriority[p]
	}

	return &stats, nil
}
