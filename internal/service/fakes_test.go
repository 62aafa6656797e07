package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memStore backs the in-memory repository fakes. failUpdatesAfter simulates a
// write fault partway through a batch: once that many updates have succeeded,
// every further UpdateWithVersion fails.
type memStore struct {
	blocks           map[uuid.UUID]model.BlockRequest
	decisions        []model.BlockDecision
	audits           []model.AuditLog
	users            map[uuid.UUID]model.User
	updates          int
	failUpdatesAfter int
}

func newMemStore() *memStore {
	return &memStore{
		blocks:           make(map[uuid.UUID]model.BlockRequest),
		users:            make(map[uuid.UUID]model.User),
		failUpdatesAfter: -1,
	}
}

func (s *memStore) putBlock(b model.BlockRequest) {
	if b.Version == 0 {
		b.Version = 1
	}
	s.blocks[b.ID] = b
}

// memTxManager mimics transactional semantics over the store: the block table
// is snapshotted before fn and restored if fn fails, so batch rollback is
// observable without a database.
type memTxManager struct {
	store *memStore
}

func (t *memTxManager) run(fn func(txCtx context.Context) error) error {
	snapshot := make(map[uuid.UUID]model.BlockRequest, len(t.store.blocks))
	for id, b := range t.store.blocks {
		snapshot[id] = b
	}
	decisions := len(t.store.decisions)
	audits := len(t.store.audits)

	if err := fn(context.Background()); err != nil {
		t.store.blocks = snapshot
		t.store.decisions = t.store.decisions[:decisions]
		t.store.audits = t.store.audits[:audits]
		return err
	}
	return nil
}

func (t *memTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return t.run(fn)
}

func (t *memTxManager) RunInLockedTx(ctx context.Context, lockKeys []string, fn func(txCtx context.Context) error) error {
	return t.run(fn)
}

type memBlockRepo struct {
	store *memStore
}

func (r *memBlockRepo) Create(ctx context.Context, req *model.BlockRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Version = 1
	r.store.putBlock(*req)
	return nil
}

func (r *memBlockRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error) {
	b, ok := r.store.blocks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *memBlockRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.BlockRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *memBlockRepo) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.BlockRequest, error) {
	var out []model.BlockRequest
	for _, id := range ids {
		if b, ok := r.store.blocks[id]; ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memBlockRepo) List(ctx context.Context, filter repository.BlockFilter) ([]model.BlockRequest, int64, error) {
	var out []model.BlockRequest
	for _, b := range r.store.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, int64(len(out)), nil
}

func (r *memBlockRepo) ListAwaitingAllocation(ctx context.Context, from, to time.Time, corridorTypes []string) ([]model.BlockRequest, error) {
	inClass := make(map[string]bool, len(corridorTypes))
	for _, c := range corridorTypes {
		inClass[c] = true
	}
	var out []model.BlockRequest
	for _, b := range r.store.blocks {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		if b.State != model.StateAwaitingSlot && b.State != model.StateSlotOffered {
			continue
		}
		if !inClass[b.CorridorType] {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DemandTimeFrom.Equal(out[j].DemandTimeFrom) {
			return out[i].DemandTimeFrom.Before(out[j].DemandTimeFrom)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memBlockRepo) ListActiveByResourceDate(ctx context.Context, missionBlock string, date time.Time) ([]model.BlockRequest, error) {
	var out []model.BlockRequest
	for _, b := range r.store.blocks {
		if b.MissionBlock != missionBlock || !b.Date.Equal(date) {
			continue
		}
		switch b.State {
		case model.StateRejected, model.StateUserRejected, model.StateCancelled:
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memBlockRepo) UpdateWithVersion(ctx context.Context, req *model.BlockRequest) error {
	if r.store.failUpdatesAfter >= 0 && r.store.updates >= r.store.failUpdatesAfter {
		return errors.New("write failed")
	}
	stored, ok := r.store.blocks[req.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != req.Version {
		return repository.ErrStaleVersion
	}
	req.Version++
	r.store.blocks[req.ID] = *req
	r.store.updates++
	return nil
}

func (r *memBlockRepo) CountByDivisionPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	for _, b := range r.store.blocks {
		if len(b.DivisionID) >= len(prefix) && b.DivisionID[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

type memDecisionRepo struct {
	store   *memStore
	findErr error
}

func (r *memDecisionRepo) Create(ctx context.Context, decision *model.BlockDecision) error {
	if decision.ID == uuid.Nil {
		decision.ID = uuid.New()
	}
	r.store.decisions = append(r.store.decisions, *decision)
	return nil
}

func (r *memDecisionRepo) FindByRequestAndApprover(ctx context.Context, requestID, approverID uuid.UUID) (*model.BlockDecision, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := range r.store.decisions {
		d := r.store.decisions[i]
		if d.BlockRequestID == requestID && d.ApproverID == approverID {
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memDecisionRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.BlockDecision, error) {
	var out []model.BlockDecision
	for _, d := range r.store.decisions {
		if d.BlockRequestID == requestID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memAuditRepo struct {
	store *memStore
}

func (r *memAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *memAuditRepo) List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, a := range r.store.audits {
		if action == "" || a.Action == action {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

type memUserRepo struct {
	store *memStore
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.store.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	u, ok := r.store.users[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.store.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range r.store.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range r.store.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *memUserRepo) Update(ctx context.Context, user *model.User) error {
	r.store.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return gorm.ErrRecordNotFound
	}
	delete(r.store.users, uid)
	return nil
}
