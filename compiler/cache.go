package compiler

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/regcode"
)

// Cache memoizes RegCode by the identity of the CodeObject it was
// compiled from, so a function invoked many times (the common case in
// any of the benchmark fixtures — quicksort, fannkuch, matrix multiply)
// is lowered exactly once.
type Cache struct {
	lru *lru.Cache[*hostrt.CodeObject, *regcode.RegCode]
}

// NewCache builds a cache holding up to size compiled RegCodes. A
// bounded LRU (rather than an unbounded map) keeps long-running
// embedders — a server compiling many short-lived scripts — from
// retaining RegCode for CodeObjects that are never invoked again.
func NewCache(size int) *Cache {
	c, err := lru.New[*hostrt.CodeObject, *regcode.RegCode](size)
	if err != nil {
		// size <= 0; fall back to a minimal cache rather than panicking,
		// since a misconfigured cache size shouldn't take down the
		// embedder.
		c, _ = lru.New[*hostrt.CodeObject, *regcode.RegCode](1)
	}
	return &Cache{lru: c}
}

func (c *Cache) Get(co *hostrt.CodeObject) (*regcode.RegCode, bool) {
	return c.lru.Get(co)
}

func (c *Cache) Put(co *hostrt.CodeObject, rc *regcode.RegCode) {
	c.lru.Add(co, rc)
}
