package relationship

import (
	"sync"

	"github.com/jacentio/resourceful/internal/shard"
)

const defaultStripes = 64

// locks serializes foreign array writes per parent within one process.
// Parents that hash to the same stripe share a mutex.
type locks struct {
	stripes []sync.Mutex
}

func newLocks(n int) *locks {
	if n < 1 {
		n = defaultStripes
	}
	if n > shard.MaxStripes {
		n = shard.MaxStripes
	}
	return &locks{stripes: make([]sync.Mutex, n)}
}

// lock acquires the stripe of ref and returns its release func.
func (l *locks) lock(ref string) func() {
	m := &l.stripes[shard.Index(ref, len(l.stripes))]
	m.Lock()
	return m.Unlock
}
