package custody

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Owner is a principal authorized to mutate the vault.
type Owner struct {
	Principal common.Address `json:"principal"`
	AddedAt   time.Time      `json:"added_at"`
}

// registry is the in-memory owner set. It is not safe for concurrent use;
// the engine guards it. Checks and mutations are split so the engine can
// persist between them.
type registry struct {
	owners map[common.Address]Owner
}

func newRegistry(owners []Owner) *registry {
	r := &registry{owners: make(map[common.Address]Owner, len(owners))}
	for _, o := range owners {
		r.owners[o.Principal] = o
	}
	return r
}

func (r *registry) isOwner(p common.Address) bool {
	_, ok := r.owners[p]
	return ok
}

func (r *registry) count() int {
	return len(r.owners)
}

func (r *registry) checkAdd(caller, newOwner common.Address) error {
	if !r.isOwner(caller) {
		return ErrUnauthorized
	}
	if r.isOwner(newOwner) {
		return ErrAlreadyOwner
	}
	return nil
}

func (r *registry) checkRemove(caller, target common.Address) error {
	if !r.isOwner(caller) {
		return ErrUnauthorized
	}
	if !r.isOwner(target) {
		return ErrNotAnOwner
	}
	if r.count() <= 1 {
		return ErrLastOwner
	}
	return nil
}

func (r *registry) insert(o Owner) {
	r.owners[o.Principal] = o
}

func (r *registry) delete(p common.Address) {
	delete(r.owners, p)
}

// list returns owners ordered by the time they were added.
func (r *registry) list() []Owner {
	out := make([]Owner, 0, len(r.owners))
	for _, o := range r.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].Principal.Cmp(out[j].Principal) < 0
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out
}
