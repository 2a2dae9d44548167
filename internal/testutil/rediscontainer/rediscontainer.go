// Package rediscontainer starts the Redis instance used by the cache/redis
// integration tests.
package rediscontainer

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/adeilh/go-livescore/internal/testutil/container"
)

const hostPort = "6390"

var redis = container.New(container.Spec{
	Dockerfile:   "Dockerfile.redis.test",
	Image:        "livescore-redis-test",
	Name:         "livescore-redis-test",
	Ports:        []string{hostPort + ":6379"},
	Ready:        ping,
	ReadyTimeout: 5 * time.Second,
})

// Addr is the host:port of the test instance.
func Addr() string { return "127.0.0.1:" + hostPort }

// Setup builds and runs the container, waiting until it answers PING.
func Setup() error { return redis.Start() }

func Teardown() error { return redis.Stop() }

func ping() error {
	conn, err := net.DialTimeout("tcp", Addr(), 200*time.Millisecond)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.Contains(line, "PONG") {
		return fmt.Errorf("unexpected reply %q", line)
	}
	return nil
}
