// Package container runs throwaway docker containers for integration tests.
// Callers skip their tests when Start reports an error.
package container

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Spec describes an image built from a Dockerfile at the repository root.
type Spec struct {
	Dockerfile   string
	Image        string
	Name         string
	Ports        []string // host:container
	Ready        func() error
	ReadyTimeout time.Duration
}

type Container struct {
	spec Spec

	mu      sync.Mutex
	started bool
	err     error
}

func New(spec Spec) *Container {
	if spec.ReadyTimeout <= 0 {
		spec.ReadyTimeout = 10 * time.Second
	}
	return &Container{spec: spec}
}

// Start builds and runs the container once; later calls return the first
// outcome.
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.err != nil {
		return c.err
	}
	if c.err = Available(); c.err != nil {
		return c.err
	}
	_ = c.stopLocked()
	if c.err = docker("build", "-f", filepath.Join(RepoRoot(), c.spec.Dockerfile), "-t", c.spec.Image, RepoRoot()); c.err != nil {
		return c.err
	}
	args := []string{"run", "-d", "--rm", "--name", c.spec.Name}
	for _, p := range c.spec.Ports {
		args = append(args, "-p", p)
	}
	if c.err = docker(append(args, c.spec.Image)...); c.err != nil {
		return c.err
	}
	if c.spec.Ready != nil {
		if err := WaitFor(c.spec.ReadyTimeout, c.spec.Ready); err != nil {
			c.err = fmt.Errorf("%s not ready: %w", c.spec.Name, err)
			_ = c.stopLocked()
			return c.err
		}
	}
	c.started = true
	return nil
}

// Stop removes the container if Start launched it.
func (c *Container) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return c.err
	}
	c.started = false
	return c.stopLocked()
}

func (c *Container) stopLocked() error {
	cmd := exec.Command("docker", "stop", c.spec.Name)
	cmd.Dir = RepoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

// Available reports whether a docker daemon can be reached.
func Available() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker executable not found: %w", err)
	}
	if err := exec.Command("docker", "info").Run(); err != nil {
		return fmt.Errorf("docker daemon unavailable: %w", err)
	}
	return nil
}

// WaitFor polls probe until it succeeds or timeout elapses.
func WaitFor(timeout time.Duration, probe func() error) error {
	deadline := time.Now().Add(timeout)
	var last error
	for time.Now().Before(deadline) {
		if last = probe(); last == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if last == nil {
		last = errors.New("timed out")
	}
	return last
}

func docker(args ...string) error {
	cmd := exec.Command("docker", args...)
	cmd.Dir = RepoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

// RepoRoot is the module root, where the test Dockerfiles live.
func RepoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
