package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/ParadojaDevs/ClimaGuru/internal/domain"
)

// In-memory repository fakes for service tests. They mirror the lifecycle and
// uniqueness guarantees the Postgres implementations enforce in SQL.

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(user *domain.User) error {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByUsernameOrEmail(identifier string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) Update(user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) RecordLogin(id string, at time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (f *fakeUserRepo) Deactivate(id string) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Active = false
	return nil
}

type fakeSessionRepo struct {
	sessions map[string]*domain.Session // keyed by token
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessionRepo) Create(session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = time.Now().UTC()
	f.sessions[session.Token] = session
	return nil
}

func (f *fakeSessionRepo) GetByToken(token string) (*domain.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSessionRepo) Revoke(token string) error {
	if s, ok := f.sessions[token]; ok {
		s.Active = false
	}
	return nil
}

func (f *fakeSessionRepo) DeactivateExpired(now time.Time) (int64, error) {
	var n int64
	for _, s := range f.sessions {
		if s.Active && !now.Before(s.ExpiresAt) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

type fakeCredentialRepo struct {
	creds map[string]*domain.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{creds: make(map[string]*domain.Credential)}
}

func (f *fakeCredentialRepo) Create(cred *domain.Credential) error {
	if cred.Active {
		for _, c := range f.creds {
			if c.Active && c.UserID == cred.UserID && c.Provider == cred.Provider {
				return domain.ErrConflict
			}
		}
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.CreatedAt = time.Now().UTC()
	cred.UpdatedAt = cred.CreatedAt
	f.creds[cred.ID] = cred
	return nil
}

func (f *fakeCredentialRepo) GetByID(id, userID string) (*domain.Credential, error) {
	if c, ok := f.creds[id]; ok && c.UserID == userID {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCredentialRepo) GetActiveByProvider(userID, provider string) (*domain.Credential, error) {
	for _, c := range f.creds {
		if c.Active && c.UserID == userID && c.Provider == provider {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCredentialRepo) ListByUser(userID string) ([]*domain.Credential, error) {
	var out []*domain.Credential
	for _, c := range f.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredentialRepo) Update(cred *domain.Credential) error {
	if _, ok := f.creds[cred.ID]; !ok {
		return domain.ErrNotFound
	}
	cred.UpdatedAt = time.Now().UTC()
	f.creds[cred.ID] = cred
	return nil
}

func (f *fakeCredentialRepo) Delete(id, userID string) error {
	if c, ok := f.creds[id]; ok && c.UserID == userID {
		delete(f.creds, id)
		return nil
	}
	return domain.ErrNotFound
}

func (f *fakeCredentialRepo) ResetDailyCounters(before time.Time) (int64, error) {
	var n int64
	for _, c := range f.creds {
		if c.UsedToday > 0 && c.UpdatedAt.Before(before) {
			c.UsedToday = 0
			n++
		}
	}
	return n, nil
}

type fakeQueryRepo struct {
	queries map[string]*domain.Query
	results map[string]*domain.Result // keyed by query id

	lastPerPage int
}

func newFakeQueryRepo() *fakeQueryRepo {
	return &fakeQueryRepo{
		queries: make(map[string]*domain.Query),
		results: make(map[string]*domain.Result),
	}
}

func (f *fakeQueryRepo) Create(q *domain.Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = time.Now().UTC()
	f.queries[q.ID] = q
	return nil
}

func (f *fakeQueryRepo) GetByIDAndOwner(id, userID string) (*domain.Query, error) {
	if q, ok := f.queries[id]; ok && q.UserID == userID {
		return q, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeQueryRepo) GetResult(queryID string) (*domain.Result, error) {
	if r, ok := f.results[queryID]; ok {
		return r, nil
	}
	return nil, domain.ErrNoData
}

func (f *fakeQueryRepo) Start(queryID string) error {
	q, ok := f.queries[queryID]
	if !ok || q.State != domain.StatePendiente {
		return domain.ErrInvalidState
	}
	q.State = domain.StateProcesando
	return nil
}

func (f *fakeQueryRepo) Complete(queryID string, result *domain.Result, completedAt time.Time, latencyMS int64) error {
	q, ok := f.queries[queryID]
	if !ok || q.State != domain.StateProcesando {
		return domain.ErrInvalidState
	}
	q.State = domain.StateCompletada
	q.CompletedAt = &completedAt
	q.LatencyMS = latencyMS
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.QueryID = queryID
	f.results[queryID] = result
	return nil
}

func (f *fakeQueryRepo) Fail(queryID, message string) error {
	q, ok := f.queries[queryID]
	if !ok || q.State != domain.StateProcesando {
		return domain.ErrInvalidState
	}
	q.State = domain.StateError
	q.ErrorMsg = message
	return nil
}

func (f *fakeQueryRepo) List(userID string, filter domain.QueryFilter, page, perPage int) (*domain.QueryPage, error) {
	f.lastPerPage = perPage

	var all []*domain.Query
	for _, q := range f.queries {
		if q.UserID != userID {
			continue
		}
		if filter.Type != "" && q.Type != filter.Type {
			continue
		}
		if filter.State != "" && q.State != filter.State {
			continue
		}
		all = append(all, q)
	}

	total := len(all)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pages := (total + perPage - 1) / perPage
	return &domain.QueryPage{
		Queries: all[start:end],
		Total:   total,
		Pages:   pages,
		Page:    page,
		PerPage: perPage,
	}, nil
}

type fakeActivityRepo struct {
	entries []*domain.ActivityEntry
}

func (f *fakeActivityRepo) Insert(entry *domain.ActivityEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

// fakeKeySource satisfies credentialSource without a real credential store.
type fakeKeySource struct {
	keys map[string]string // provider -> key
}

func (f *fakeKeySource) ActiveKey(userID, provider string) (string, error) {
	if k, ok := f.keys[provider]; ok {
		return k, nil
	}
	return "", domain.ErrNotFound
}
