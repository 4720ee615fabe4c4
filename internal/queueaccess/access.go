package queueaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrisync/internal/api"
	"agrisync/internal/dispatch"
	"agrisync/internal/ipc"
	"agrisync/internal/kvstore"
	"agrisync/internal/logging"
	"agrisync/internal/offlinecache"
	"agrisync/internal/queue"
)

// Mode names the backing an Access talks to.
type Mode string

const (
	ModeDaemon  Mode = "daemon"
	ModeOffline Mode = "offline"
)

// Access provides queue and cache operations regardless of IPC or direct
// store backing.
type Access interface {
	Mode() Mode
	Enqueue(ctx context.Context, kind string, payload json.RawMessage) (string, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id string) (*api.QueueItem, error)
	Retry(ctx context.Context, ids []string) (int, error)
	Clear(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) (bool, error)
	Health(ctx context.Context) (api.QueueHealth, error)
	CacheGet(ctx context.Context, key string) (*api.CacheEntry, error)
	CachePut(ctx context.Context, key string, data json.RawMessage) (api.CacheEntry, error)
	CacheKeys(ctx context.Context) ([]string, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by the durable store. Requests are
// validated the same way the daemon validates them before they are queued.
func NewStoreAccess(store kvstore.Store) Access {
	mgr := queue.NewManager(store, logging.NewNop())
	return &storeAccess{
		queue:   mgr,
		service: api.NewQueueService(mgr),
		cache:   offlinecache.NewCache(store),
	}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Mode() Mode { return ModeDaemon }

func (a *ipcAccess) Enqueue(_ context.Context, kind string, payload json.RawMessage) (string, error) {
	resp, err := a.client.Enqueue(kind, payload)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.ListPending(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []string) (int, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Clear(_ context.Context) (int, error) {
	resp, err := a.client.QueueClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Remove(_ context.Context, id string) (bool, error) {
	resp, err := a.client.QueueRemove(id)
	if err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Health(_ context.Context) (api.QueueHealth, error) {
	resp, err := a.client.Status()
	if err != nil {
		return api.QueueHealth{}, err
	}
	return resp.Queue, nil
}

func (a *ipcAccess) CacheGet(_ context.Context, key string) (*api.CacheEntry, error) {
	resp, err := a.client.CacheGet(key)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return &resp.Entry, nil
}

func (a *ipcAccess) CachePut(_ context.Context, key string, data json.RawMessage) (api.CacheEntry, error) {
	resp, err := a.client.CachePut(key, data)
	if err != nil {
		return api.CacheEntry{}, err
	}
	return resp.Entry, nil
}

func (a *ipcAccess) CacheKeys(_ context.Context) ([]string, error) {
	resp, err := a.client.CacheKeys()
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

type storeAccess struct {
	queue   *queue.Manager
	service *api.QueueService
	cache   *offlinecache.Cache
}

func (a *storeAccess) Mode() Mode { return ModeOffline }

func (a *storeAccess) Enqueue(ctx context.Context, rawKind string, payload json.RawMessage) (string, error) {
	kind, err := dispatch.Validate(rawKind, payload)
	if err != nil {
		return "", err
	}
	return a.queue.Enqueue(ctx, kind, payload)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	filters, invalid := api.ParseStatuses(statuses)
	if len(invalid) > 0 {
		return nil, fmt.Errorf("unknown status: %s", strings.Join(invalid, ", "))
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Retry(ctx context.Context, ids []string) (int, error) {
	return a.queue.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Clear(ctx context.Context) (int, error) {
	return a.queue.Clear(ctx)
}

func (a *storeAccess) Remove(ctx context.Context, id string) (bool, error) {
	return a.queue.Remove(ctx, id)
}

func (a *storeAccess) Health(ctx context.Context) (api.QueueHealth, error) {
	health, err := a.queue.Health(ctx)
	if err != nil {
		return api.QueueHealth{}, err
	}
	return api.FromQueueHealth(health), nil
}

func (a *storeAccess) CacheGet(ctx context.Context, key string) (*api.CacheEntry, error) {
	entry, ok, err := a.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	dto := api.FromCacheEntry(entry, time.Now())
	return &dto, nil
}

func (a *storeAccess) CachePut(ctx context.Context, key string, data json.RawMessage) (api.CacheEntry, error) {
	entry, err := a.cache.Put(ctx, key, data)
	if err != nil {
		return api.CacheEntry{}, err
	}
	return api.FromCacheEntry(entry, entry.Timestamp), nil
}

func (a *storeAccess) CacheKeys(ctx context.Context) ([]string, error) {
	return a.cache.Keys(ctx)
}
