// Package msgcache keeps recently decrypted post texts so a post is not
// decrypted again each time it is shown.
//
// An entry is only served while the post still carries the envelope
// signature it was cached with; an edited post therefore misses.
package msgcache

import (
	"bytes"
	"container/list"
	"sync"

	"groupseal/internal/domain"
)

// DefaultCapacity is the number of entries kept when New is given zero.
const DefaultCapacity = 5000

type entry struct {
	id        string
	plaintext string
	signature []byte
}

// Cache is a bounded map from post id to plaintext. The oldest inserted
// entry is evicted first; updating an entry keeps its position.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// New returns an empty cache holding at most capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Put stores plaintext for id, bound to the envelope signature.
func (c *Cache) Put(id, plaintext string, signature []byte) {
	if id == "" {
		return
	}
	sig := append([]byte(nil), signature...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		e := el.Value.(*entry)
		e.plaintext, e.signature = plaintext, sig
		return
	}
	c.items[id] = c.order.PushBack(&entry{id: id, plaintext: plaintext, signature: sig})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).id)
	}
}

// AddMine caches a post the local user just encrypted. The server has not
// assigned an id yet, so the pending id is the key.
func (c *Cache) AddMine(post *domain.Post, plaintext string) {
	if !post.Encrypted() {
		return
	}
	c.Put(post.PendingPostID, plaintext, post.Signature())
}

// AddDecrypted caches a post decrypted on receipt.
func (c *Cache) AddDecrypted(post *domain.Post, plaintext string) {
	if !post.Encrypted() {
		return
	}
	c.Put(postKey(post), plaintext, post.Signature())
}

// AddUpdated caches an edited post. Edited posts keep their pending id but
// already have a permanent one, which is used instead.
func (c *Cache) AddUpdated(post *domain.Post, plaintext string) {
	if !post.Encrypted() {
		return
	}
	c.Put(post.ID, plaintext, post.Signature())
}

// Get returns the cached plaintext of post. It misses when the post is not
// encrypted or its signature differs from the cached one. The permanent id is
// tried before the pending one.
func (c *Cache) Get(post *domain.Post) (string, bool) {
	if !post.Encrypted() {
		return "", false
	}
	sig := post.Signature()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range [...]string{post.ID, post.PendingPostID} {
		if id == "" {
			continue
		}
		el, ok := c.items[id]
		if !ok {
			continue
		}
		if e := el.Value.(*entry); bytes.Equal(e.signature, sig) {
			return e.plaintext, true
		}
	}
	return "", false
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func postKey(post *domain.Post) string {
	if post.PendingPostID != "" {
		return post.PendingPostID
	}
	return post.ID
}
