package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT   = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT  = 5 * time.Minute // audio uploads and downloads
	DEFAULT_SHUTDOWN_GRACE = 30 * time.Second
	GRACEFUL_ENVIRON_KEY   = "IS_GRACEFUL"
	GRACEFUL_ENVIRON_VALUE = GRACEFUL_ENVIRON_KEY + "=1"
	GRACEFUL_LISTENER_FD   = 3
)

// Server wraps http.Server with signal driven shutdown, zero-downtime
// restart on SIGUSR2 and cleanup hooks that run after the listener closes.
type Server struct {
	*http.Server

	listener   net.Listener
	inherited  bool
	signals    chan os.Signal
	done       chan struct{}
	hooksMu    sync.Mutex
	hooks      []func(context.Context)
	closeOnce  sync.Once
	shutdownIn time.Duration
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		inherited:  os.Getenv(GRACEFUL_ENVIRON_KEY) != "",
		signals:    make(chan os.Signal, 1),
		done:       make(chan struct{}),
		shutdownIn: DEFAULT_SHUTDOWN_GRACE,
	}
}

// OnShutdown registers fn to run, in registration order, once the HTTP
// server has drained. Typical hooks close the database, redis and sentry.
func (srv *Server) OnShutdown(fn func(context.Context)) {
	srv.hooksMu.Lock()
	srv.hooks = append(srv.hooks, fn)
	srv.hooksMu.Unlock()
}

// ListenAndServe serves on tcp until a shutdown signal arrives.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.listen(addr)
	if err != nil {
		return err
	}
	srv.listener = ln
	go srv.handleSignals()

	err = srv.Server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.done
		return nil
	}
	return err
}

// Stop drains the server as SIGTERM would.
func (srv *Server) Stop() {
	srv.shutdown()
}

func (srv *Server) listen(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(GRACEFUL_LISTENER_FD, ""))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	for sig := range srv.signals {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			Sugar.Infof("received %s, draining HTTP server", sig)
			srv.shutdown()
			return
		case syscall.SIGUSR2:
			pid, err := srv.fork()
			if err != nil {
				Sugar.Errorf("restart failed, still serving: %v", err)
				continue
			}
			Sugar.Infof("restarted as pid=%d, draining old server", pid)
			srv.shutdown()
			return
		}
	}
}

func (srv *Server) shutdown() {
	srv.closeOnce.Do(func() {
		signal.Stop(srv.signals)
		ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownIn)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			Sugar.Errorf("HTTP server shutdown error: %v", err)
		}
		srv.hooksMu.Lock()
		hooks := append([]func(context.Context){}, srv.hooks...)
		srv.hooksMu.Unlock()
		for _, fn := range hooks {
			fn(ctx)
		}
		Sugar.Info("HTTP server stopped")
		close(srv.done)
	})
}

// fork execs a copy of the binary that inherits the listening socket as fd 3.
func (srv *Server) fork() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, not *net.TCPListener", srv.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != GRACEFUL_ENVIRON_VALUE {
			env = append(env, e)
		}
	}
	env = append(env, GRACEFUL_ENVIRON_VALUE)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer starts an HTTP server with graceful capabilities.
func GraceServer(addr string, handler http.Handler, hooks ...func(context.Context)) error {
	srv := NewServer(addr, handler, DEFAULT_READ_TIMEOUT, DEFAULT_WRITE_TIMEOUT)
	for _, h := range hooks {
		srv.OnShutdown(h)
	}
	return srv.ListenAndServe()
}
