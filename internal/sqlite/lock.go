package sqlite

import "sync"

// Lock is a held serialization guard on a Conn.
//
// Hold it for the whole unit of work, including iteration of every ResultSet
// produced inside it. Lock is not reentrant: calling Conn.Lock again from the
// same goroutine while holding it deadlocks.
type Lock struct {
	conn *Conn
	once sync.Once
}

// Lock blocks until the connection's mutex is acquired.
func (c *Conn) Lock() *Lock {
	c.lockMu.Lock()
	return &Lock{conn: c}
}

// TryLock acquires the connection's mutex without blocking. It returns nil
// when another caller holds it.
func (c *Conn) TryLock() *Lock {
	if !c.lockMu.TryLock() {
		return nil
	}
	return &Lock{conn: c}
}

// Unlock releases the mutex. Calling it more than once is a no-op.
func (l *Lock) Unlock() {
	l.once.Do(l.conn.lockMu.Unlock)
}

// WithLock runs fn while holding the connection's Lock.
func (c *Conn) WithLock(fn func() error) error {
	l := c.Lock()
	defer l.Unlock()
	return fn()
}
