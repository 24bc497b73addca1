package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard/internal/common"
	"taskboard/internal/domain/model"
)

// MemoryStore keeps users and tasks in process memory. It backs local runs
// without PostgreSQL and the test suites, and mirrors the SQL repositories'
// filtering, ordering and error semantics.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	tasks map[string]model.Task
	now   func() time.Time

	lastUserStamp time.Time
	lastTaskStamp time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		tasks: make(map[string]model.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Users() UserRepository { return &memoryUserRepository{s: s} }

func (s *MemoryStore) Tasks() TaskRepository { return &memoryTaskRepository{s: s} }

// tick returns a timestamp strictly after every timestamp handed out before,
// so creation order survives coarse clocks.
func (s *MemoryStore) tick(last *time.Time) time.Time {
	t := s.now()
	if !t.After(*last) {
		t = last.Add(time.Microsecond)
	}
	*last = t
	return t
}

type memoryUserRepository struct {
	s *MemoryStore
}

func (r *memoryUserRepository) conflicts(u *model.User) bool {
	for id, other := range r.s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || other.Email == u.Email {
			return true
		}
	}
	return false
}

func (r *memoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; exists || r.conflicts(user) {
		return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
	}
	user.CreatedAt = r.s.tick(&r.s.lastUserStamp)
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) findBy(match func(model.User) bool) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(func(u model.User) bool { return u.Email == email })
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func matchesUser(u model.User, f model.UserFilter) bool {
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	if f.IsActive != nil && u.IsActive != *f.IsActive {
		return false
	}
	if f.Search != "" && !containsFold(f.Search, u.Username, u.Email, u.FirstName, u.LastName) {
		return false
	}
	return true
}

func containsFold(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func (r *memoryUserRepository) List(ctx context.Context, filter model.UserFilter, page model.Page) ([]model.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []model.User{}
	for _, u := range r.s.users {
		if matchesUser(u, filter) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, page), len(matched), nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	if r.conflicts(user) {
		return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
	}
	current.Username = user.Username
	current.Email = user.Email
	current.Role = user.Role
	current.IsActive = user.IsActive
	current.FirstName = user.FirstName
	current.LastName = user.LastName
	current.UpdatedAt = r.s.now()
	r.s.users[user.ID] = current
	user.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *memoryUserRepository) DeleteWithTasks(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return common.ErrNotFound
	}
	for taskID, t := range r.s.tasks {
		switch {
		case t.UserID == id:
			delete(r.s.tasks, taskID)
		case t.CreatedBy == id:
			t.CreatedBy = ""
			r.s.tasks[taskID] = t
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r *memoryUserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *memoryUserRepository) Counts(ctx context.Context) (model.UserCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var c model.UserCounts
	for _, u := range r.s.users {
		c.TotalUsers++
		if u.IsActive {
			c.ActiveUsers++
		}
		if u.Role == model.RoleAdmin {
			c.AdminUsers++
		}
	}
	return c, nil
}

type memoryTaskRepository struct {
	s *MemoryStore
}

func matchesTask(t model.Task, f model.TaskFilter) bool {
	if f.ID != nil && t.ID != *f.ID {
		return false
	}
	if f.OwnerID != nil && t.UserID != *f.OwnerID {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Search != "" && !containsFold(f.Search, t.Title, t.Description) {
		return false
	}
	return true
}

// populate attaches owner and creator summaries. Callers hold the read lock.
func (r *memoryTaskRepository) populate(t model.Task) model.Task {
	if owner, ok := r.s.users[t.UserID]; ok {
		t.Owner = owner.Summary()
	}
	if creator, ok := r.s.users[t.CreatedBy]; ok && t.CreatedBy != "" {
		t.Creator = creator.Summary()
	}
	return t
}

func (r *memoryTaskRepository) Create(ctx context.Context, task *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[task.UserID]; !ok {
		return fmt.Errorf("memoryTaskRepository.Create: owner %s does not exist", task.UserID)
	}
	task.CreatedAt = r.s.tick(&r.s.lastTaskStamp)
	task.UpdatedAt = task.CreatedAt
	stored := *task
	stored.Owner, stored.Creator = nil, nil
	r.s.tasks[task.ID] = stored
	return nil
}

// first returns the first match in default list order.
func (r *memoryTaskRepository) first(filter model.TaskFilter) (model.Task, bool) {
	matched := r.match(filter, model.DefaultTaskSort)
	if len(matched) == 0 {
		return model.Task{}, false
	}
	return matched[0], true
}

func (r *memoryTaskRepository) match(filter model.TaskFilter, s model.TaskSort) []model.Task {
	matched := []model.Task{}
	for _, t := range r.s.tasks {
		if matchesTask(t, filter) {
			matched = append(matched, t)
		}
	}
	sortTasks(matched, s)
	return matched
}

func (r *memoryTaskRepository) FindOne(ctx context.Context, filter model.TaskFilter) (*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.first(filter)
	if !ok {
		return nil, common.ErrNotFound
	}
	t = r.populate(t)
	return &t, nil
}

func (r *memoryTaskRepository) List(ctx context.Context, filter model.TaskFilter, s model.TaskSort, page model.Page) ([]model.Task, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := r.match(filter, s)
	out := paginate(matched, page)
	for i := range out {
		out[i] = r.populate(out[i])
	}
	return out, len(matched), nil
}

func (r *memoryTaskRepository) mutate(filter model.TaskFilter, change func(*model.Task)) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.first(filter)
	if !ok {
		return nil, common.ErrNotFound
	}
	change(&t)
	t.UpdatedAt = r.s.now()
	r.s.tasks[t.ID] = t
	t = r.populate(t)
	return &t, nil
}

func (r *memoryTaskRepository) Update(ctx context.Context, filter model.TaskFilter, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return r.FindOne(ctx, filter)
	}
	return r.mutate(filter, patch.Apply)
}

func (r *memoryTaskRepository) ToggleCompleted(ctx context.Context, filter model.TaskFilter) (*model.Task, error) {
	return r.mutate(filter, func(t *model.Task) { t.Completed = !t.Completed })
}

func (r *memoryTaskRepository) Delete(ctx context.Context, filter model.TaskFilter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for id, t := range r.s.tasks {
		if matchesTask(t, filter) {
			delete(r.s.tasks, id)
			n++
		}
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *memoryTaskRepository) StatsForOwner(ctx context.Context, ownerID string) (model.TaskStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var st model.TaskStats
	for _, t := range r.s.tasks {
		if t.UserID != ownerID {
			continue
		}
		st.Total++
		if t.Completed {
			st.Completed++
		} else {
			st.Pending++
		}
	}
	return st, nil
}

func (r *memoryTaskRepository) Counts(ctx context.Context) (model.TaskCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var c model.TaskCounts
	for _, t := range r.s.tasks {
		c.TotalTasks++
		if t.Completed {
			c.CompletedTasks++
		} else {
			c.PendingTasks++
		}
	}
	return c, nil
}

// taskLess compares a and b on the sort field only; 0 means equal.
// A missing due date sorts after every present one, as NULL does in PostgreSQL.
func taskLess(a, b model.Task, field model.TaskSortField) int {
	switch field {
	case model.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case model.SortByDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	case model.SortByPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case model.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case model.SortByCompleted:
		switch {
		case a.Completed == b.Completed:
			return 0
		case !a.Completed:
			return -1
		}
		return 1
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func sortTasks(tasks []model.Task, s model.TaskSort) {
	sort.Slice(tasks, func(i, j int) bool {
		c := taskLess(tasks[i], tasks[j], s.Field)
		if c == 0 {
			c = strings.Compare(tasks[i].ID, tasks[j].ID)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func paginate[T any](items []T, page model.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[start:end]...)
}
