package cache

import "time"

// Layered checks a fast cache before a slow one and promotes slow hits.
type Layered struct {
	fast Cache
	slow Cache
}

func NewLayered(fast, slow Cache) *Layered {
	return &Layered{fast: fast, slow: slow}
}

func (c *Layered) Get(key string) ([]byte, bool) {
	if val, found := c.fast.Get(key); found {
		return val, true
	}
	if val, found := c.slow.Get(key); found {
		_ = c.fast.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

func (c *Layered) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.fast.Set(key, value, ttl); err != nil {
		return err
	}
	return c.slow.Set(key, value, ttl)
}

func (c *Layered) Delete(key string) error {
	if err := c.fast.Delete(key); err != nil {
		return err
	}
	return c.slow.Delete(key)
}
