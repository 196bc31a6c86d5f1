package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"tagnav/internal/logging"
)

// Actions understood by the daemon.
const (
	ActionStatus  = "status"
	ActionStop    = "stop"
	ActionReindex = "reindex"
	ActionAdd     = "add"
	ActionRemove  = "remove"
)

const ioTimeout = 10 * time.Second

// Command represents a request from the CLI to the daemon
type Command struct {
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
}

// Response represents a response from the daemon to the CLI
type Response struct {
	Status  string `json:"status"` // ok, error
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Controller is what the IPC server drives. *Daemon implements it.
type Controller interface {
	Status() Status
	Stop()
	TriggerReindex(path string) error
	AddWorkspace(path string) error
	RemoveWorkspace(path string) error
}

// IPCServer handles communication between CLI and daemon
type IPCServer struct {
	socketPath string
	listener   net.Listener
	ctl        Controller
	logger     *slog.Logger

	closeOnce sync.Once
	conns     sync.WaitGroup
}

// NewIPCServer listens on a unix socket, replacing a stale one.
func NewIPCServer(socketPath string, ctl Controller, logger *slog.Logger) (*IPCServer, error) {
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	return &IPCServer{
		socketPath: socketPath,
		listener:   listener,
		ctl:        ctl,
		logger:     logging.OrNop(logger),
	}, nil
}

// Close stops accepting connections and waits for in-flight ones.
func (s *IPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.listener.Close()
		os.Remove(s.socketPath)
	})
	s.conns.Wait()
	return err
}

// Serve handles incoming connections until the listener is closed or ctx
// ends.
func (s *IPCServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *IPCServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return
	}

	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		s.sendResponse(conn, Response{Status: "error", Message: "invalid command"})
		return
	}

	s.logger.Debug("ipc command", "action", cmd.Action, "path", cmd.Path)
	s.sendResponse(conn, s.handleCommand(cmd))
}

func (s *IPCServer) handleCommand(cmd Command) Response {
	switch cmd.Action {
	case ActionStatus:
		return Response{Status: "ok", Data: s.ctl.Status()}

	case ActionStop:
		s.ctl.Stop()
		return Response{Status: "ok", Message: "daemon stopping"}

	case ActionReindex, ActionAdd, ActionRemove:
		if cmd.Path == "" {
			return Response{Status: "error", Message: "path required"}
		}
		op, msg := s.ctl.TriggerReindex, "reindex queued"
		switch cmd.Action {
		case ActionAdd:
			op, msg = s.ctl.AddWorkspace, "workspace added"
		case ActionRemove:
			op, msg = s.ctl.RemoveWorkspace, "workspace removed"
		}
		if err := op(cmd.Path); err != nil {
			return Response{Status: "error", Message: err.Error()}
		}
		return Response{Status: "ok", Message: msg}

	default:
		return Response{Status: "error", Message: "unknown action"}
	}
}

func (s *IPCServer) sendResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Response{Status: "error", Message: err.Error()})
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		s.logger.Debug("ipc write failed", "error", err)
	}
}

// IPCClient is used by CLI to communicate with daemon
type IPCClient struct {
	socketPath string
}

// NewIPCClient creates a new IPC client
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath}
}

// DefaultSocketPath returns the default socket path for the current user
func DefaultSocketPath() string {
	return fmt.Sprintf("/tmp/tagnav-%d.sock", os.Getuid())
}

// Send sends a command to the daemon and returns the response
func (c *IPCClient) Send(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// do sends cmd and turns an error response into a Go error.
func (c *IPCClient) do(cmd Command) (*Response, error) {
	resp, err := c.Send(cmd)
	if err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return resp, errors.New(resp.Message)
	}
	return resp, nil
}

// IsRunning checks if the daemon is running
func (c *IPCClient) IsRunning() bool {
	_, err := c.do(Command{Action: ActionStatus})
	return err == nil
}

// Stop tells the daemon to shut down
func (c *IPCClient) Stop() error {
	_, err := c.do(Command{Action: ActionStop})
	return err
}

// Status returns the daemon status
func (c *IPCClient) Status() (*Status, error) {
	resp, err := c.do(Command{Action: ActionStatus})
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, err
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &status, nil
}

// Reindex triggers reindexing for a workspace
func (c *IPCClient) Reindex(path string) error {
	_, err := c.do(Command{Action: ActionReindex, Path: path})
	return err
}

// Add registers a workspace with the running daemon.
func (c *IPCClient) Add(path string) error {
	_, err := c.do(Command{Action: ActionAdd, Path: path})
	return err
}

// Remove unregisters a workspace from the running daemon.
func (c *IPCClient) Remove(path string) error {
	_, err := c.do(Command{Action: ActionRemove, Path: path})
	return err
}
