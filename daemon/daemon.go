// Package daemon detaches the receiver into the background and stops a
// detached receiver through its status endpoint.
package daemon

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sevlyar/go-daemon"
)

// DaemonEnvVar marks a daemon child process.
const DaemonEnvVar = "GLIDEDECK_DAEMON_CHILD"

// Daemonize detaches the process and returns the child process handle.
// If the returned process is nil, this is the child process; if
// non-nil, this is the parent.
func Daemonize() (*os.Process, error) {
	// no pid or log file; the receiver handles its own logging
	ctx := &daemon.Context{
		WorkDir: "/",
		Umask:   027,
		Args:    os.Args,
		Env:     append(os.Environ(), fmt.Sprintf("%s=1", DaemonEnvVar)),
	}

	child, err := ctx.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}
	return child, nil
}

// IsChild returns true if this is the daemon child process.
func IsChild() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// KillReceiver posts a shutdown request to a running receiver's status
// endpoint.
func KillReceiver(addr string) error {
	// a bare port number means localhost
	if !strings.Contains(addr, ":") {
		if _, err := strconv.Atoi(addr); err == nil {
			addr = ":" + addr
		}
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	addr = "http://" + addr

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(addr+"/shutdown", "application/json", nil)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return fmt.Errorf("receiver is not running on %s", addr)
		}
		return fmt.Errorf("failed to connect to receiver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("receiver returned error: %s", resp.Status)
	}
	return nil
}
