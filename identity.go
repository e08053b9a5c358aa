package taskchat

import "sync/atomic"

// Identity carries who a run acts for. Credential is forwarded to the task
// backend and never logged.
type Identity struct {
	UserID     string
	Credential string
}

// String redacts the credential.
func (i Identity) String() string {
	if i.Credential == "" {
		return "user=" + i.UserID
	}
	return "user=" + i.UserID + " credential=***"
}

// Scope holds the identity of exactly one run. Each concurrent run binds its
// own Scope, so tools never observe another run's identity.
type Scope struct {
	id atomic.Pointer[Identity]
}

// Bind creates a scope for userID. An empty user id is rejected.
func Bind(userID, credential string) (*Scope, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	s := &Scope{}
	s.id.Store(&Identity{UserID: userID, Credential: credential})
	return s, nil
}

// Identity returns the bound identity, or ErrScopeReleased once the run ended.
func (s *Scope) Identity() (Identity, error) {
	if s == nil {
		return Identity{}, ErrNoIdentity
	}
	p := s.id.Load()
	if p == nil {
		return Identity{}, ErrScopeReleased
	}
	return *p, nil
}

// Release clears the identity. It is safe to call more than once.
func (s *Scope) Release() {
	if s != nil {
		s.id.Store(nil)
	}
}
