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
	readHeaderTimeout = 10 * time.Second
	// Uploads stream the whole body inside the read timeout.
	readTimeout  = 2 * time.Minute
	writeTimeout = 2 * time.Minute
	idleTimeout  = 2 * time.Minute
	shutdownWait = 30 * time.Second

	// inheritEnv marks a child started by SIGUSR2; it serves on fd 3.
	inheritEnv = "MYBLOG_INHERIT_LISTENER"
	inheritFD  = 3
)

// GracefulServer drains in-flight requests on SIGINT/SIGTERM and hands its
// listening socket to a fresh process on SIGUSR2. Hijacked connections such
// as websockets are not tracked by http.Server; shutdown hooks close them.
type GracefulServer struct {
	http *http.Server
	ln   net.Listener

	hooks []func()
	once  sync.Once
	done  chan struct{}
}

func NewGracefulServer(addr string, handler http.Handler) *GracefulServer {
	return &GracefulServer{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		done: make(chan struct{}),
	}
}

// OnShutdown registers fn to run, in order, once the server stopped accepting requests.
func (s *GracefulServer) OnShutdown(fn func()) { s.hooks = append(s.hooks, fn) }

// Listen binds the address, or adopts the parent's socket after a restart.
func (s *GracefulServer) Listen() error {
	if os.Getenv(inheritEnv) != "" {
		ln, err := net.FileListener(os.NewFile(inheritFD, "listener"))
		if err != nil {
			return fmt.Errorf("inherit listener: %w", err)
		}
		s.ln = ln
		return nil
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address; valid after Listen.
func (s *GracefulServer) Addr() net.Addr { return s.ln.Addr() }

// Serve blocks until the server has shut down and every hook has run.
func (s *GracefulServer) Serve() error {
	err := s.http.Serve(s.ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-s.done
	return nil
}

// Shutdown stops accepting, waits up to shutdownWait for requests, then runs hooks.
func (s *GracefulServer) Shutdown() {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			Sugar.Errorf("HTTP server shutdown error: %v", err)
		} else {
			Sugar.Info("HTTP server drained")
		}
		for _, fn := range s.hooks {
			fn()
		}
		close(s.done)
	})
}

func (s *GracefulServer) handleSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-s.done:
			return
		case sig := <-sigs:
			if sig != syscall.SIGUSR2 {
				Sugar.Infof("received %s, shutting down", sig)
				go s.Shutdown()
				continue
			}
			pid, err := s.spawnSuccessor()
			if err != nil {
				Sugar.Errorf("restart failed, still serving: %v", err)
				continue
			}
			Sugar.Infof("successor pid=%d took over the listener, shutting down", pid)
			go s.Shutdown()
		}
	}
}

// spawnSuccessor re-executes the binary with the listening socket as fd 3.
func (s *GracefulServer) spawnSuccessor() (int, error) {
	tcp, ok := s.ln.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not TCP")
	}
	f, err := tcp.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer f.Close()

	env := append(os.Environ(), inheritEnv+"=1")
	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork/exec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until a termination signal. The hooks
// run after the HTTP server drained, e.g. to stop the websocket hub and workers.
func GraceServer(addr string, handler http.Handler, hooks ...func()) error {
	s := NewGracefulServer(addr, handler)
	for _, fn := range hooks {
		s.OnShutdown(fn)
	}
	if err := s.Listen(); err != nil {
		return err
	}
	go s.handleSignals()
	Sugar.Infof("listening on %s", s.Addr())
	return s.Serve()
}
