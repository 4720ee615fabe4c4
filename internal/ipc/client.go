package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue submits a mutation for background delivery.
func (c *Client) Enqueue(kind string, payload json.RawMessage) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.call("Enqueue", EnqueueRequest{Kind: kind, Payload: payload}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPending returns queue items optionally filtered by statuses.
func (c *Client) ListPending(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call("ListPending", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single queue item.
func (c *Client) QueueDescribe(id string) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.call("QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry resets failed items; no ids retries every failed item.
func (c *Client) QueueRetry(ids []string) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.call("QueueRetry", QueueRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all items from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call("QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove deletes one item.
func (c *Client) QueueRemove(id string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.call("QueueRemove", QueueRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncNow runs a drain and returns its report.
func (c *Client) SyncNow() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call("SyncNow", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetNetwork pushes a connectivity change to the daemon.
func (c *Client) SetNetwork(online bool) (*NetworkResponse, error) {
	var resp NetworkResponse
	if err := c.call("SetNetwork", NetworkRequest{Online: online}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheGet loads a cached snapshot.
func (c *Client) CacheGet(key string) (*CacheGetResponse, error) {
	var resp CacheGetResponse
	if err := c.call("CacheGet", CacheGetRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CachePut stores a snapshot.
func (c *Client) CachePut(key string, data json.RawMessage) (*CachePutResponse, error) {
	var resp CachePutResponse
	if err := c.call("CachePut", CachePutRequest{Key: key, Data: data}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheKeys lists cached keys.
func (c *Client) CacheKeys() (*CacheKeysResponse, error) {
	var resp CacheKeysResponse
	if err := c.call("CacheKeys", CacheKeysRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
