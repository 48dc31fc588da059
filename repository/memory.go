package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civictrack-be/geo"
	"civictrack-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps every collection in process memory. It backs local runs
// without MongoDB and the service tests. Transactions are serialized; each
// write made inside one records how to reverse itself, and an error replays
// those records so writes made outside the transaction are left alone.
type MemoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	issues    map[primitive.ObjectID]models.Issue
	flags     []models.Flag
	flagIndex map[[2]primitive.ObjectID]struct{}
	users     map[primitive.ObjectID]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:    make(map[primitive.ObjectID]models.Issue),
		flagIndex: make(map[[2]primitive.ObjectID]struct{}),
		users:     make(map[primitive.ObjectID]models.User),
	}
}

// Store exposes the memory store through the repository interfaces.
func (m *MemoryStore) Store() *Store {
	return &Store{
		Issues: memoryIssues{m},
		Flags:  memoryFlags{m},
		Users:  memoryUsers{m},
		Tx:     m,
	}
}

type memoryTxKey struct{}

type memoryTx struct {
	undo []func()
}

// onRollback registers fn to run if the transaction carried by ctx fails.
// Callers hold m.mu; fn runs under m.mu as well.
func onRollback(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

func (m *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func matches(issue models.Issue, f IssueFilter) bool {
	if !f.IncludeHidden && issue.IsHidden {
		return false
	}
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.ReporterID != nil && !issue.ReportedBy(*f.ReporterID) {
		return false
	}
	if f.FlaggedOnly && issue.FlagCount == 0 {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(issue.Title), needle) &&
			!strings.Contains(strings.ToLower(issue.Description), needle) {
			return false
		}
	}
	return true
}

func sortIssues(issues []models.Issue, by IssueSort) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if by == SortMostFlagged && a.FlagCount != b.FlagCount {
			return a.FlagCount > b.FlagCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if by == SortOldest {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.Hex() < b.ID.Hex()
	})
}

// updateIssue applies fn to a stored issue. Callers hold m.mu.
func (m *MemoryStore) updateIssue(id primitive.ObjectID, fn func(*models.Issue)) {
	if issue, ok := m.issues[id]; ok {
		fn(&issue)
		m.issues[id] = issue
	}
}

type memoryIssues struct{ m *MemoryStore }

func (r memoryIssues) Create(ctx context.Context, issue *models.Issue) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, ok := r.m.issues[issue.ID]; ok {
		return ErrDuplicate
	}
	r.m.issues[issue.ID] = *issue
	id := issue.ID
	onRollback(ctx, func() { delete(r.m.issues, id) })
	return nil
}

func (r memoryIssues) FindByID(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	issue, ok := r.m.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &issue, nil
}

func (r memoryIssues) collect(f IssueFilter, keep func(models.Issue) bool) []models.Issue {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Issue{}
	for _, issue := range r.m.issues {
		if matches(issue, f) && keep(issue) {
			out = append(out, issue)
		}
	}
	return out
}

func (r memoryIssues) Find(_ context.Context, f IssueFilter, by IssueSort, page Page) ([]models.Issue, int64, error) {
	all := r.collect(f, func(models.Issue) bool { return true })
	sortIssues(all, by)

	total := int64(len(all))
	start := page.Skip()
	if start >= total {
		return []models.Issue{}, total, nil
	}
	end := total
	if page.Limit > 0 && start+int64(page.Limit) < total {
		end = start + int64(page.Limit)
	}
	return all[start:end], total, nil
}

func (r memoryIssues) FindWithinBoundingBox(_ context.Context, box geo.BoundingBox, f IssueFilter) ([]models.Issue, error) {
	return r.collect(f, func(issue models.Issue) bool {
		return box.Contains(issue.Location())
	}), nil
}

func (r memoryIssues) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	issue, ok := r.m.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	previous := issue.Status
	onRollback(ctx, func() {
		r.m.updateIssue(id, func(i *models.Issue) { i.Status = previous })
	})
	issue.Status = status
	issue.UpdatedAt = time.Now()
	r.m.issues[id] = issue
	return &issue, nil
}

func (r memoryIssues) AtomicIncrementFlagCount(ctx context.Context, id primitive.ObjectID) (FlagTally, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	issue, ok := r.m.issues[id]
	if !ok {
		return FlagTally{}, ErrNotFound
	}
	onRollback(ctx, func() {
		r.m.updateIssue(id, func(i *models.Issue) { i.FlagCount-- })
	})
	issue.FlagCount++
	issue.UpdatedAt = time.Now()
	r.m.issues[id] = issue
	return FlagTally{FlagCount: issue.FlagCount, IsHidden: issue.IsHidden}, nil
}

func (r memoryIssues) SetHidden(ctx context.Context, id primitive.ObjectID, hidden bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	issue, ok := r.m.issues[id]
	if !ok {
		return ErrNotFound
	}
	previous := issue.IsHidden
	onRollback(ctx, func() {
		r.m.updateIssue(id, func(i *models.Issue) { i.IsHidden = previous })
	})
	issue.IsHidden = hidden
	issue.UpdatedAt = time.Now()
	r.m.issues[id] = issue
	return nil
}

func (r memoryIssues) Stats(_ context.Context, days []time.Time, topFlagged int) (*IssueStats, error) {
	all := r.collect(IssueFilter{IncludeHidden: true}, func(models.Issue) bool { return true })

	stats := &IssueStats{
		ByCategory: []models.CategoryCount{},
		Daily:      make([]int64, len(days)),
		TopFlagged: []models.FlaggedIssue{},
		Total:      int64(len(all)),
	}

	byCategory := map[models.IssueCategory]int64{}
	for _, issue := range all {
		byCategory[issue.Category]++
		if issue.Status.Open() {
			stats.Open++
		}
		if issue.IsHidden {
			stats.Hidden++
		}
		for i, day := range days {
			if !issue.CreatedAt.Before(day) && issue.CreatedAt.Before(day.Add(24*time.Hour)) {
				stats.Daily[i]++
			}
		}
	}
	for name, value := range byCategory {
		stats.ByCategory = append(stats.ByCategory, models.CategoryCount{Name: name, Value: value})
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool {
		return stats.ByCategory[i].Name < stats.ByCategory[j].Name
	})

	sortIssues(all, SortMostFlagged)
	for _, issue := range all {
		if len(stats.TopFlagged) == topFlagged || issue.FlagCount == 0 {
			break
		}
		stats.TopFlagged = append(stats.TopFlagged, models.FlaggedIssue{
			ID:        issue.ID,
			Title:     issue.Title,
			Category:  issue.Category,
			FlagCount: issue.FlagCount,
			IsHidden:  issue.IsHidden,
		})
	}
	return stats, nil
}

type memoryFlags struct{ m *MemoryStore }

func (r memoryFlags) Insert(ctx context.Context, flag *models.Flag) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	key := [2]primitive.ObjectID{flag.IssueID, flag.FlaggedBy}
	if _, ok := r.m.flagIndex[key]; ok {
		return ErrDuplicate
	}
	if flag.ID.IsZero() {
		flag.ID = primitive.NewObjectID()
	}
	r.m.flagIndex[key] = struct{}{}
	r.m.flags = append(r.m.flags, *flag)
	id := flag.ID
	onRollback(ctx, func() {
		delete(r.m.flagIndex, key)
		for i, f := range r.m.flags {
			if f.ID == id {
				r.m.flags = append(r.m.flags[:i], r.m.flags[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r memoryFlags) Exists(_ context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	_, ok := r.m.flagIndex[[2]primitive.ObjectID{issueID, userID}]
	return ok, nil
}

func (r memoryFlags) ListByIssue(_ context.Context, issueID primitive.ObjectID) ([]models.Flag, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Flag{}
	for _, f := range r.m.flags {
		if f.IssueID == issueID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r memoryFlags) Count(context.Context) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(r.m.flags)), nil
}

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) Create(ctx context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.m.users[user.ID] = *user
	id := user.ID
	onRollback(ctx, func() { delete(r.m.users, id) })
	return nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return ErrNotFound
	}
	previous := u.Role
	onRollback(ctx, func() {
		if u, ok := r.m.users[id]; ok {
			u.Role = previous
			r.m.users[id] = u
		}
	})
	u.Role = role
	u.UpdatedAt = time.Now()
	r.m.users[id] = u
	return nil
}
