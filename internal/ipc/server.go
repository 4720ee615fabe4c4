package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"agrisync/internal/api"
	"agrisync/internal/daemon"
	"agrisync/internal/logging"
	"agrisync/internal/syncer"
)

// ServiceName is the JSON-RPC receiver name clients call methods on.
const ServiceName = "AgriSync"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun agrisync stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).Payload()
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	id, err := s.daemon.Enqueue(s.ctx, req.Kind, req.Payload)
	if err != nil {
		return err
	}
	resp.ID = id
	s.log().Info("item enqueued via IPC",
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldKind, strings.TrimSpace(req.Kind)),
		logging.String(logging.FieldEventType, "queue_enqueue"))
	return nil
}

func (s *service) ListPending(req QueueListRequest, resp *QueueListResponse) error {
	statuses, invalid := api.ParseStatuses(req.Statuses)
	if len(invalid) > 0 {
		return fmt.Errorf("unknown status: %s", strings.Join(invalid, ", "))
	}
	items, err := s.daemon.QueueService().List(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue item id required")
	}
	item, err := s.daemon.QueueService().Describe(s.ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %s not found", id)
	}
	resp.Item = *item
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested", logging.Int("item_count", len(req.IDs)))
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int("updated_count", updated))
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested")
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue item id required")
	}
	removed, err := s.daemon.RemoveItem(s.ctx, id)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) SyncNow(_ SyncRequest, resp *SyncResponse) error {
	report, err := s.daemon.SyncNow(s.ctx)
	if errors.Is(err, syncer.ErrCycleInProgress) {
		resp.Busy = true
		return nil
	}
	if err != nil {
		return err
	}
	resp.Report = api.FromReport(report)
	return nil
}

func (s *service) SetNetwork(req NetworkRequest, resp *NetworkResponse) error {
	resp.Changed = s.daemon.SetOnline(req.Online)
	resp.Network = s.daemon.Network()
	return nil
}

func (s *service) CacheGet(req CacheGetRequest, resp *CacheGetResponse) error {
	entry, ok, err := s.daemon.CacheGet(s.ctx, req.Key)
	if err != nil {
		return err
	}
	resp.Found = ok
	if ok {
		resp.Entry = api.FromCacheEntry(entry, time.Now())
	}
	return nil
}

func (s *service) CachePut(req CachePutRequest, resp *CachePutResponse) error {
	entry, err := s.daemon.CachePut(s.ctx, req.Key, req.Data)
	if err != nil {
		return err
	}
	resp.Entry = api.FromCacheEntry(entry, entry.Timestamp)
	return nil
}

func (s *service) CacheKeys(_ CacheKeysRequest, resp *CacheKeysResponse) error {
	keys, err := s.daemon.CacheKeys(s.ctx)
	if err != nil {
		return err
	}
	resp.Keys = keys
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}
