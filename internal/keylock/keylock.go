// Package keylock provides striped mutexes keyed by strings.
//
// Keys hash onto a fixed array of stripes. Acquiring several keys locks
// their stripes in ascending stripe order with duplicates removed, so two
// callers locking overlapping key sets can never deadlock and a stripe
// shared by two keys is never locked twice.
package keylock

import (
	"hash/fnv"
	"sort"
	"sync"
)

// DefaultStripes is used when New is given a non-positive count.
const DefaultStripes = 256

// Striped is a fixed set of mutexes addressed by key hash.
type Striped struct {
	stripes []sync.Mutex
}

// New creates a Striped with n stripes.
func New(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Striped{stripes: make([]sync.Mutex, n)}
}

func (s *Striped) index(key string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(len(s.stripes)))
}

// Lock acquires every stripe covering keys and returns the matching unlock
// function. Call it exactly once.
func (s *Striped) Lock(keys ...string) (unlock func()) {
	idx := s.stripesFor(keys)
	for _, i := range idx {
		s.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			s.stripes[idx[j]].Unlock()
		}
	}
}

// With runs fn while holding the locks for keys.
func (s *Striped) With(fn func() error, keys ...string) error {
	unlock := s.Lock(keys...)
	defer unlock()
	return fn()
}

func (s *Striped) stripesFor(keys []string) []int {
	seen := make(map[int]struct{}, len(keys))
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		i := s.index(k)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// UserKey is the lock key for a user's follow edges.
func UserKey(userID string) string { return "user:" + userID }

// PostKey is the lock key for a post's reply and delete paths.
func PostKey(postID string) string { return "post:" + postID }

// LikeKey is the lock key for one user's like of one post.
func LikeKey(postID, userID string) string { return "like:" + postID + ":" + userID }

// RepostKey is the lock key for one user's repost of one post.
func RepostKey(postID, userID string) string { return "repost:" + postID + ":" + userID }
