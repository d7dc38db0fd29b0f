package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/centavo/internal/store/core"
)

// Store implementa core.Repository en memoria. Útil para desarrollo sin DB y
// para tests de services. Replica las mismas garantías que los constraints de
// Postgres (unicidad de email y de (user, provider), check-and-mark de backup
// codes) bajo un mutex.
type Store struct {
	mu sync.Mutex

	users       map[string]*core.User        // por id
	usersByMail map[string]string            // email -> id
	accounts    map[string]*core.AuthAccount // por id
	sessions    map[string]*core.Session     // por token hash
	verifTokens map[string]*core.VerificationToken
	mfa         map[string]*core.MFATOTP // por user id
	backupCodes map[string][]backupCode  // por user id
}

type backupCode struct {
	hash   string
	usedAt *time.Time
}

func New() *Store {
	return &Store{
		users:       map[string]*core.User{},
		usersByMail: map[string]string{},
		accounts:    map[string]*core.AuthAccount{},
		sessions:    map[string]*core.Session{},
		verifTokens: map[string]*core.VerificationToken{},
		mfa:         map[string]*core.MFATOTP{},
		backupCodes: map[string][]backupCode{},
	}
}

func cloneUser(u *core.User) *core.User {
	c := *u
	return &c
}

func cloneAccount(a *core.AuthAccount) *core.AuthAccount {
	c := *a
	return &c
}

func cloneSession(s *core.Session) *core.Session {
	c := *s
	return &c
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, dup := s.usersByMail[email]; dup {
		return core.ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = email

	s.users[u.ID] = cloneUser(u)
	s.usersByMail[email] = u.ID
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByMail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) SetEmailVerified(_ context.Context, userID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.EmailVerified = verified
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetTwoFactorEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.TwoFactorEnabled = enabled
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- auth accounts ----

func (s *Store) CreateAuthAccount(_ context.Context, a *core.AuthAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ex := range s.accounts {
		if ex.UserID == a.UserID && ex.ProviderID == a.ProviderID {
			return core.ErrConflict
		}
		if ex.ProviderID == a.ProviderID && ex.AccountID == a.AccountID {
			return core.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*core.User, *core.AuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByMail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil, core.ErrNotFound
	}
	for _, a := range s.accounts {
		if a.UserID == id && a.ProviderID == core.ProviderCredential {
			return cloneUser(s.users[id]), cloneAccount(a), nil
		}
	}
	return nil, nil, core.ErrNotFound
}

func (s *Store) GetAuthAccount(_ context.Context, userID, providerID string) (*core.AuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			return cloneAccount(a), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetAuthAccountByProvider(_ context.Context, providerID, accountID string) (*core.AuthAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			return cloneAccount(a), nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) UpdateProviderTokens(_ context.Context, accountID string, access, refresh *string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.ErrNotFound
	}
	a.AccessToken = access
	if refresh != nil {
		a.RefreshToken = refresh
	}
	a.TokenExpiresAt = expiresAt
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, phc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.ProviderID == core.ProviderCredential {
			h := phc
			a.PasswordHash = &h
			return nil
		}
	}
	return core.ErrNotFound
}

// ---- sessions ----

func (s *Store) CreateSession(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	// el service decide los timestamps (usa su propio reloj); sólo se
	// completan si vienen en cero
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	s.sessions[sess.TokenHash] = cloneSession(sess)
	return nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[tokenHash]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneSession(se), nil
}

func (s *Store) TouchSession(_ context.Context, id string, expiresAt, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, se := range s.sessions {
		if se.ID == id {
			se.ExpiresAt = expiresAt
			se.UpdatedAt = at
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteSessionsByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, se := range s.sessions {
		if se.UserID == userID {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListSessionsByUser(_ context.Context, userID string) ([]core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Session
	for _, se := range s.sessions {
		if se.UserID == userID {
			out = append(out, *cloneSession(se))
		}
	}
	return out, nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, se := range s.sessions {
		if !se.ExpiresAt.After(now) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

// ---- verification tokens ----

func (s *Store) CreateVerificationToken(_ context.Context, v *core.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = time.Now().UTC()
	s.verifTokens[v.Purpose+"|"+v.TokenHash] = v
	return nil
}

func (s *Store) ConsumeVerificationToken(_ context.Context, purpose, tokenHash string, now time.Time) (*core.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := purpose + "|" + tokenHash
	v, ok := s.verifTokens[key]
	if !ok || !v.ExpiresAt.After(now) {
		return nil, core.ErrNotFound
	}
	delete(s.verifTokens, key)
	return v, nil
}

func (s *Store) DeleteVerificationTokens(_ context.Context, userID, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.verifTokens {
		if v.UserID == userID && v.Purpose == purpose {
			delete(s.verifTokens, k)
		}
	}
	return nil
}

// ---- mfa ----

func (s *Store) UpsertMFATOTP(_ context.Context, userID, secretEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if m, ok := s.mfa[userID]; ok {
		m.SecretEncrypted = secretEnc
		m.ConfirmedAt = nil
		m.LastUsedAt = nil
		m.UpdatedAt = now
		return nil
	}
	s.mfa[userID] = &core.MFATOTP{UserID: userID, SecretEncrypted: secretEnc, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (s *Store) GetMFATOTP(_ context.Context, userID string) (*core.MFATOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mfa[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (s *Store) ConfirmMFATOTP(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mfa[userID]
	if !ok {
		return core.ErrNotFound
	}
	m.ConfirmedAt = &at
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateMFAUsedAt(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mfa[userID]
	if !ok {
		return core.ErrNotFound
	}
	m.LastUsedAt = &at
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DisableMFATOTP(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mfa, userID)
	delete(s.backupCodes, userID)
	return nil
}

func (s *Store) InsertBackupCodes(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make([]backupCode, 0, len(hashes))
	for _, h := range hashes {
		codes = append(codes, backupCode{hash: h})
	}
	s.backupCodes[userID] = codes
	return nil
}

func (s *Store) UseBackupCode(_ context.Context, userID, hash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.backupCodes[userID]
	for i := range codes {
		if codes[i].hash == hash && codes[i].usedAt == nil {
			t := at
			codes[i].usedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}
