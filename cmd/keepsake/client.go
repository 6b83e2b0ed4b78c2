package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"keepsake/internal/api"
	"keepsake/internal/config"
)

const (
	noAutostartEnvKey  = "KEEPSAKE_NO_AUTOSTART"
	startTimeoutEnvKey = "KEEPSAKE_START_TIMEOUT"

	defaultStartTimeout = 3 * time.Second
	probeTimeout        = 500 * time.Millisecond
	pollInterval        = 100 * time.Millisecond
	stopGrace           = 2 * time.Second
)

// localServer is a `keepsake srv` child spawned for the lifetime of one command.
type localServer struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	child, err := ensureServer(client, cfg)
	if err != nil {
		return err
	}
	defer child.stop()
	return fn(client)
}

// ensureServer returns a nil *localServer when something already answers at
// the API URL. Any HTTP answer counts, including a degraded health probe.
func ensureServer(client *api.Client, cfg *config.Config) (*localServer, error) {
	probeErr := probe(client, probeTimeout)
	var apiErr *api.APIError
	if probeErr == nil || errors.As(probeErr, &apiErr) {
		return nil, nil
	}
	if autostartDisabled() {
		return nil, fmt.Errorf("no keepsake server at %s and %s is set: %w", cfg.APIURL, noAutostartEnvKey, probeErr)
	}

	child, err := spawnServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	if err := child.waitReady(client, startTimeout()); err != nil {
		child.stop()
		return nil, err
	}
	return child, nil
}

func spawnServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(), "KEEPSAKE_DB="+cfg.DBPath, "KEEPSAKE_API_URL="+cfg.APIURL)
	cmd.Stdout, cmd.Stderr = io.Discard, io.Discard
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	child := &localServer{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(child.done)
	}()
	return child, nil
}

func (s *localServer) waitReady(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-s.done:
			return errors.New("local server exited during startup; run `keepsake srv` to see why")
		default:
		}
		err := probe(client, 200*time.Millisecond)
		if err == nil {
			return nil
		}
		if !isConnRefused(err) {
			// Port answered, but not as a keepsake server.
			return err
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("local server did not answer within %s", timeout)
}

// stop interrupts the child and kills it if it does not exit within stopGrace.
func (s *localServer) stop() {
	if s == nil {
		return
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
	case <-time.After(stopGrace):
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

func probe(client *api.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Ping(ctx)
}

func autostartDisabled() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(noAutostartEnvKey)))
	return err == nil && v
}

func startTimeout() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(startTimeoutEnvKey))); err == nil && d > 0 {
		return d
	}
	return defaultStartTimeout
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
