package storage

import (
	"sync"
	"time"
)

type Connection interface{}

type (
	dialFunc  func(account string) (Connection, error)
	closeFunc func(conn Connection) error
)

// GenericConnectionPool keeps one live connection per service account and
// drops connections idle for longer than ttl.
type GenericConnectionPool struct {
	connections map[string]*PooledGenericConnection
	mu          sync.Mutex
	ttl         time.Duration
	dial        dialFunc
	closeConn   closeFunc
	now         func() time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

type PooledGenericConnection struct {
	connection Connection
	lastUsed   time.Time
	account    string
}

func NewGenericConnectionPool(dial dialFunc, closeConn closeFunc, ttl time.Duration) *GenericConnectionPool {
	pool := newPool(dial, closeConn, ttl)
	go pool.cleanup(time.Minute)
	return pool
}

func newPool(dial dialFunc, closeConn closeFunc, ttl time.Duration) *GenericConnectionPool {
	return &GenericConnectionPool{
		connections: make(map[string]*PooledGenericConnection),
		ttl:         ttl,
		dial:        dial,
		closeConn:   closeConn,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

func (p *GenericConnectionPool) GetConnection(account string) (Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if conn, exists := p.connections[account]; exists {
		if now.Sub(conn.lastUsed) < p.ttl {
			conn.lastUsed = now
			return conn.connection, nil
		}
		p.closeConn(conn.connection)
		delete(p.connections, account)
	}

	connection, err := p.dial(account)
	if err != nil {
		return nil, err
	}

	p.connections[account] = &PooledGenericConnection{
		connection: connection,
		lastUsed:   now,
		account:    account,
	}

	return connection, nil
}

// Invalidate closes and forgets the account's connection after a failed call,
// so the next GetConnection dials again.
func (p *GenericConnectionPool) Invalidate(account string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, exists := p.connections[account]; exists {
		p.closeConn(conn.connection)
		delete(p.connections, account)
	}
}

func (p *GenericConnectionPool) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *GenericConnectionPool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for account, conn := range p.connections {
		if now.Sub(conn.lastUsed) > p.ttl {
			p.closeConn(conn.connection)
			delete(p.connections, account)
		}
	}
}

func (p *GenericConnectionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

func (p *GenericConnectionPool) Close() {
	p.stopOnce.Do(func() { close(p.stop) })

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, conn := range p.connections {
		p.closeConn(conn.connection)
	}

	p.connections = make(map[string]*PooledGenericConnection)
}
