package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[domain.Username]struct{}

// Registry is the process-wide set of usernames currently held by a session.
// A name is present if and only if a live session owns it.
type Registry struct {
	mu    sync.RWMutex
	names Set
}

func NewRegistry() *Registry {
	return &Registry{names: make(Set)}
}

// TryRegister claims name for the caller.
// The membership check and the insert happen under a single write lock, so two
// sessions racing for the same name can never both succeed.
func (r *Registry) TryRegister(name string) (domain.Username, error) {
	username := domain.Username(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[username]; taken {
		return "", errors.ErrUsernameTaken
	}
	r.names[username] = struct{}{}
	return username, nil
}

// Unregister releases name. Releasing a name that is not held is a no-op.
func (r *Registry) Unregister(name domain.Username) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[domain.Username(name)]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Names returns a sorted snapshot of the registered usernames.
func (r *Registry) Names() []domain.Username {
	r.mu.RLock()
	names := lo.Keys(r.names)
	r.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
