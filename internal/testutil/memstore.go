// Package testutil provides in-memory fakes of the repository and event ports.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/ports"
)

// ErrInjected is a generic failure for error-injection tests.
var ErrInjected = errors.New("injected failure")

// MemoryStore keeps users and tasks in memory. Tasks and Users return views implementing the
// repository ports; the store itself implements ports.Transactor.
type MemoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entities.User
	tasks map[uuid.UUID]*entities.Task

	// Error injection for testing
	CreateTaskErr error
	UpdateTaskErr error
	DeleteTaskErr error
	ListErr       error
	CountErr      error
	CommitErr     error // returned by WithinTx after fn succeeds; nothing is applied

	commits   int
	rollbacks int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uuid.UUID]*entities.User),
		tasks: make(map[uuid.UUID]*entities.Task),
	}
}

// Users returns the user repository view of the store.
func (s *MemoryStore) Users() ports.UserRepository { return memoryUsers{s} }

// Tasks returns the task repository view of the store.
func (s *MemoryStore) Tasks() ports.TaskRepository { return memoryTasks{s} }

// AddUser seeds a user and returns it.
func (s *MemoryStore) AddUser(name string, role entities.UserRole) *entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	u := &entities.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u
	return u
}

// DeleteUser soft-deletes a user so that lookups no longer find it.
func (s *MemoryStore) DeleteUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.DeletedAt = &now
	}
}

// PutTask stores a copy of t as-is.
func (s *MemoryStore) PutTask(t *entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t.Clone()
}

// Task returns a copy of the stored task, including soft-deleted ones.
func (s *MemoryStore) Task(id uuid.UUID) (*entities.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// TaskCount reports the number of stored rows.
func (s *MemoryStore) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Commits and Rollbacks report how many transactions ended each way.
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryStore) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

// WithinTx implements ports.Transactor. The store lock is held for the whole transaction, which
// gives the same isolation as row locks held until commit.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, scope ports.AssignmentScope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := &memoryScope{store: s, staged: make(map[uuid.UUID]*entities.Task)}
	if err := fn(ctx, scope); err != nil {
		s.rollbacks++
		return err
	}

	if s.CommitErr != nil {
		s.rollbacks++
		return s.CommitErr
	}

	for id, t := range scope.staged {
		s.tasks[id] = t
	}
	s.commits++
	return nil
}

type memoryScope struct {
	store  *MemoryStore
	staged map[uuid.UUID]*entities.Task
}

func (sc *memoryScope) LockTask(_ context.Context, id uuid.UUID) (*entities.Task, error) {
	t, ok := sc.store.tasks[id]
	if !ok || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (sc *memoryScope) LockUser(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := sc.store.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (sc *memoryScope) SaveAssignment(_ context.Context, task *entities.Task) error {
	stored, ok := sc.store.tasks[task.ID]
	if !ok || stored.IsDeleted {
		return entities.ErrTaskNotFound
	}
	c := task.Clone()
	c.Version = stored.Version + 1
	task.Version = c.Version
	sc.staged[task.ID] = c
	return nil
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *entities.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return entities.ErrEmailTaken
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, entities.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

type memoryTasks struct{ s *MemoryStore }

func (r memoryTasks) Create(_ context.Context, task *entities.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.CreateTaskErr != nil {
		return r.s.CreateTaskErr
	}
	r.s.tasks[task.ID] = task.Clone()
	return nil
}

func (r memoryTasks) GetByID(_ context.Context, id uuid.UUID) (*entities.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	return r.s.withSummaries(t), nil
}

func (r memoryTasks) Update(_ context.Context, task *entities.Task, checkVersion bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.UpdateTaskErr != nil {
		return r.s.UpdateTaskErr
	}
	stored, ok := r.s.tasks[task.ID]
	if !ok || stored.IsDeleted {
		return entities.ErrTaskNotFound
	}
	if checkVersion && stored.Version != task.Version {
		return entities.ErrVersionConflict
	}

	task.Version = stored.Version + 1
	r.s.tasks[task.ID] = task.Clone()
	return nil
}

func (r memoryTasks) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.DeleteTaskErr != nil {
		return r.s.DeleteTaskErr
	}
	if _, ok := r.s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r memoryTasks) List(_ context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.ListErr != nil {
		return nil, r.s.ListErr
	}

	matched := r.s.match(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*entities.Task, 0, len(matched))
	for _, t := range matched {
		out = append(out, r.s.withSummaries(t))
	}
	return out, nil
}

func (r memoryTasks) Count(_ context.Context, filter ports.TaskFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.CountErr != nil {
		return 0, r.s.CountErr
	}
	return int64(len(r.s.match(filter))), nil
}

func (r memoryTasks) CountByStatus(_ context.Context) (map[entities.TaskStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.CountErr != nil {
		return nil, r.s.CountErr
	}
	out := map[entities.TaskStatus]int64{}
	for _, t := range r.s.match(ports.TaskFilter{}) {
		out[t.Status]++
	}
	return out, nil
}

func (r memoryTasks) CountByPriority(_ context.Context) (map[entities.Priority]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.CountErr != nil {
		return nil, r.s.CountErr
	}
	out := map[entities.Priority]int64{}
	for _, t := range r.s.match(ports.TaskFilter{}) {
		out[t.Priority]++
	}
	return out, nil
}

// match applies every filter field except paging. Callers hold the lock.
func (s *MemoryStore) match(f ports.TaskFilter) []*entities.Task {
	search := strings.ToLower(f.Search)

	var out []*entities.Task
	for _, t := range s.tasks {
		switch {
		case t.IsDeleted:
		case f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo:
		case f.Status != nil && t.Status != *f.Status:
		case f.ExcludeStatus != nil && t.Status == *f.ExcludeStatus:
		case f.Priority != nil && t.Priority != *f.Priority:
		case f.DeadlineBefore != nil && (t.Deadline == nil || !t.Deadline.Before(*f.DeadlineBefore)):
		case search != "" && !strings.Contains(strings.ToLower(t.Title), search):
		default:
			out = append(out, t)
		}
	}
	return out
}

func (s *MemoryStore) withSummaries(t *entities.Task) *entities.Task {
	c := t.Clone()
	if u, ok := s.users[t.CreatedBy]; ok {
		c.Creator = &entities.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if u, ok := s.users[t.AssignedTo]; ok {
		c.Assignee = &entities.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return c
}
