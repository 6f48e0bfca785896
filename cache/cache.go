// Package cache — тонкая обёртка над LRU для кэшей чтения с инвалидацией
// при записи. Никаких гарантий консистентности сильнее "следующее чтение
// после завершённой записи видит свежие данные".
package cache

import lru "github.com/hashicorp/golang-lru/v2"

type Cache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
}

func New[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[K, V](size)
	return &Cache[K, V]{entries: c}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.entries.Get(key)
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.entries.Add(key, value)
}

func (c *Cache[K, V]) Delete(key K) {
	c.entries.Remove(key)
}

func (c *Cache[K, V]) Purge() {
	c.entries.Purge()
}
