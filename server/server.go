package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"arenarelay/protocol"
)

// minAlivePlayers 存活玩家少于该值时本局结束并重置
const minAlivePlayers = 2

// Server 单一共享会话的中继：接入循环与分发循环并发运行，共享同一个 Registry
type Server struct {
	cfg      *Config
	registry *Registry
	metrics  *RelayMetrics
	notices  *Notices

	events     chan event
	resetFrame []byte

	// mu 只保护停止状态与存活连接集合，持有期间不获取 Registry 锁，
	// 因此阻塞在写出上的分发循环不会拖住停止
	mu      sync.Mutex
	stopped bool
	conns   map[uuid.UUID]Conn
	done    chan struct{} // 进程级停止信号
	readers sync.WaitGroup
}

// New 创建中继；cfg 为 nil 时使用默认配置
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var out io.Writer
	if cfg.Notices {
		out = color.Output
	}
	return &Server{
		cfg:        cfg,
		registry:   NewRegistry(cfg.WriteTimeout),
		metrics:    &RelayMetrics{},
		notices:    NewNotices(out),
		events:     make(chan event, 256), // 足够缓冲，读协程一般不会被分发阻塞
		resetFrame: protocol.MustMarshal(protocol.GameReset{}),
		conns:      make(map[uuid.UUID]Conn),
		done:       make(chan struct{}),
	}
}

func (s *Server) Registry() *Registry { return s.registry }
func (s *Server) Metrics() *RelayMetrics { return s.metrics }
func (s *Server) Config() *Config { return s.cfg }

// Serve 在 ln 上运行接入循环与分发循环，直到 ctx 结束。
// 结束时关闭监听与全部客户端连接，并等待所有读协程退出。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.dispatchLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.acceptLoop(ln)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.stop()
		// 关闭监听以解除 Accept 阻塞
		_ = ln.Close()
		return nil
	})
	err := g.Wait()
	s.readers.Wait()
	return err
}

// ListenAndServe 监听 TCP，并按配置启动 WebSocket 接入与管理 HTTP
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	Log.Infof("relay listening on %s (protocol v%d)", ln.Addr(), protocol.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx, ln) })
	if s.cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.HandleWS)
		srv := &http.Server{Addr: s.cfg.WSAddr, Handler: mux}
		g.Go(func() error { return serveHTTP(gctx, srv, "websocket") })
	}
	if s.cfg.AdminAddr != "" {
		srv := &http.Server{Addr: s.cfg.AdminAddr, Handler: s.AdminHandler()}
		g.Go(func() error { return serveHTTP(gctx, srv, "admin") })
	}
	return g.Wait()
}

func serveHTTP(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		Log.Infof("%s http listening on %s", name, srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s listen: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

// register 将新连接以 Connecting 状态加入注册表并启动其读协程。
// 停止之后到达的连接直接关闭。
func (s *Server) register(conn Conn) *Client {
	c := NewClient(conn)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.readers.Add(1)
	s.conns[c.Handle] = conn
	s.mu.Unlock()

	// 停止若发生在此之后，连接已在 conns 中被关闭，读协程随即退出
	s.registry.Add(c)

	s.metrics.IncAccepted()
	Log.Infof("accepted %s handle=%s", c.remote, c.Handle)
	// 新连接本身不会结束一局，检查只是保持状态一致
	s.checkSession()

	go s.readPump(c.Handle, conn)
	return c
}

func (s *Server) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	// 关闭套接字使阻塞中的写出失败，从而释放 Registry 锁
	for handle, conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, handle)
	}
	Log.Info("relay stopping, all connections closed")
}

// forget 从存活连接集合中移除
func (s *Server) forget(handle uuid.UUID) {
	s.mu.Lock()
	delete(s.conns, handle)
	s.mu.Unlock()
}
