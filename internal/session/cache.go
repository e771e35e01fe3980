package session

import (
	"context"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// Cache implements a cache, keyed by gateway session id and, within a
// session, by upstream connection id. One Redis or in-memory instance is
// shared process-wide across every tenant this gateway serves (spec §5);
// namespace prefixes every key it touches with the configured mesh
// namespace (see WithNamespace) so that two gateway deployments pointed at
// the same shared Redis (e.g. a staging and production mesh) never see
// each other's sessions.
type Cache struct {
	connectionString string
	namespace        string
	inmemory         *sync.Map
	extClient        *redis.Client
}

func (c *Cache) namespaced(key string) string {
	if c.namespace == "" {
		return key
	}
	return c.namespace + ":" + key
}

// KeyExists checks if a key exists in the cache
func (c *Cache) KeyExists(ctx context.Context, key string) (bool, error) {
	key = c.namespaced(key)
	if c.inmemory != nil {
		_, ok := c.inmemory.Load(key)
		return ok, nil
	}
	count, err := c.extClient.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	return false, nil

}

// GetSession returns a session from the cache
func (c *Cache) GetSession(ctx context.Context, key string) (map[string]string, error) {
	key = c.namespaced(key)
	if c.inmemory != nil {
		val, ok := c.inmemory.Load(key)
		if ok {
			return val.(map[string]string), nil
		}
		return map[string]string{}, nil
	}
	return c.extClient.HGetAll(ctx, key).Result()
}

// DeleteSessions deletes sessions from the cache
func (c *Cache) DeleteSessions(ctx context.Context, key ...string) error {
	keys := make([]string, len(key))
	for i, k := range key {
		keys[i] = c.namespaced(k)
	}
	if c.inmemory != nil {
		for _, k := range keys {
			c.inmemory.Delete(k)
		}
		return nil
	}
	return c.extClient.Del(ctx, keys...).Err()
}

// AddSession will add a session under the key. If the key exists it will append that session
func (c *Cache) AddSession(ctx context.Context, key, mcpServerID, mcpSession string) (bool, error) {
	nsKey := c.namespaced(key)
	if c.inmemory != nil {
		session, err := c.getSessionRaw(nsKey)
		if err != nil {
			return false, err
		}
		session[mcpServerID] = mcpSession
		c.inmemory.Store(nsKey, session)
		return true, nil
	}
	err := c.extClient.HSet(ctx, nsKey, mcpServerID, mcpSession).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveServerSession remove specific server session form cache
func (c *Cache) RemoveServerSession(ctx context.Context, key, mcpServerID string) error {
	nsKey := c.namespaced(key)
	if c.inmemory != nil {
		session, err := c.getSessionRaw(nsKey)
		if err != nil {
			return err
		}
		delete(session, mcpServerID)
		c.inmemory.Store(nsKey, session)
		return nil
	}
	return c.extClient.HDel(ctx, nsKey, mcpServerID).Err()
}

// getSessionRaw is GetSession without re-applying the namespace prefix, for
// callers that already hold a namespaced key.
func (c *Cache) getSessionRaw(nsKey string) (map[string]string, error) {
	val, ok := c.inmemory.Load(nsKey)
	if ok {
		return val.(map[string]string), nil
	}
	return map[string]string{}, nil
}

// Close closes the cache connection
func (c *Cache) Close() error {
	if c.inmemory != nil {
		return nil
	}
	return c.extClient.Close()
}

// NewCache returns a new cache
func NewCache(ctx context.Context, opts ...func(*Cache)) (*Cache, error) {
	c := &Cache{
		inmemory: nil,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.connectionString != "" {
		opt, err := redis.ParseURL(c.connectionString)
		if err != nil {
			return c, err
		}

		c.extClient = redis.NewClient(opt)
		return c, c.extClient.Ping(ctx).Err()
	}
	c.inmemory = &sync.Map{}
	return c, nil
}

// WithConnectionString accepts a redis connections string "redis://<user>:<pass>@localhost:6379/<db>"
func WithConnectionString(url string) func(c *Cache) {
	return func(c *Cache) {
		c.inmemory = nil
		c.connectionString = url
	}
}

// WithNamespace prefixes every key this cache touches with namespace,
// isolating one gateway/mesh deployment's sessions from another's when they
// share a single Redis instance. A per-tenant prefix is deliberately not
// offered here: the cache is constructed once, process-wide, before any
// tenant is known (spec §5), so per-tenant isolation instead comes from
// connection/virtual-MCP ids already being tenant-qualified (e.g.
// "acme/conn-1") wherever they are used as cache keys.
func WithNamespace(namespace string) func(c *Cache) {
	return func(c *Cache) {
		c.namespace = namespace
	}
}
