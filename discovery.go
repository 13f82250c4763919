package cachedemo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

var dialMemcached = func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 3 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// errNotConfigEndpoint means the endpoint is a plain memcached node rather
// than a cluster configuration endpoint.
var errNotConfigEndpoint = errors.New("memcached: endpoint does not serve cluster configuration")

// ClusterConfig is the node list advertised by a cluster configuration endpoint.
type ClusterConfig struct {
	Version int
	Nodes   []string
}

// DiscoverCluster asks endpoint for its cluster configuration using the
// "config get cluster" command and returns the advertised nodes as host:port
// addresses. Nodes are addressed by IP when one is advertised.
func DiscoverCluster(ctx context.Context, endpoint string, timeout time.Duration) (ClusterConfig, error) {
	conn, err := dialMemcached(ctx, "tcp", endpoint)
	if err != nil {
		return ClusterConfig{}, err
	}
	defer conn.Close()
	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if _, err := io.WriteString(conn, "config get cluster\r\n"); err != nil {
		return ClusterConfig{}, err
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ClusterConfig{}, err
	}
	line = strings.TrimSpace(line)
	if line == "END" || line == "ERROR" || strings.HasPrefix(line, "CLIENT_ERROR") {
		return ClusterConfig{}, errNotConfigEndpoint
	}

	// CONFIG cluster <flags> <bytes>
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != "CONFIG" {
		return ClusterConfig{}, fmt.Errorf("unexpected config response: %s", line)
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil || size < 0 {
		return ClusterConfig{}, fmt.Errorf("parse config length %q", fields[3])
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(reader, body); err != nil {
		return ClusterConfig{}, err
	}
	if _, err := reader.ReadString('\n'); err != nil { // trailing CRLF
		return ClusterConfig{}, err
	}
	end, err := reader.ReadString('\n')
	if err != nil {
		return ClusterConfig{}, err
	}
	if strings.TrimSpace(end) != "END" {
		return ClusterConfig{}, fmt.Errorf("unexpected config terminator: %s", strings.TrimSpace(end))
	}
	return parseClusterConfig(body)
}

// parseClusterConfig decodes a config body: a version line followed by a
// space separated list of host|ip|port triples.
func parseClusterConfig(body []byte) (ClusterConfig, error) {
	var lines []string
	for _, l := range strings.Split(string(body), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return ClusterConfig{}, fmt.Errorf("cluster config has %d lines, want 2", len(lines))
	}
	version, err := strconv.Atoi(lines[0])
	if err != nil {
		return ClusterConfig{}, fmt.Errorf("parse cluster config version: %w", err)
	}
	cfg := ClusterConfig{Version: version}
	for _, node := range strings.Fields(lines[1]) {
		parts := strings.Split(node, "|")
		if len(parts) != 3 {
			return ClusterConfig{}, fmt.Errorf("malformed cluster node %q", node)
		}
		host := parts[1]
		if host == "" {
			host = parts[0]
		}
		if _, err := strconv.Atoi(parts[2]); err != nil || host == "" {
			return ClusterConfig{}, fmt.Errorf("malformed cluster node %q", node)
		}
		cfg.Nodes = append(cfg.Nodes, net.JoinHostPort(host, parts[2]))
	}
	if len(cfg.Nodes) == 0 {
		return ClusterConfig{}, errors.New("cluster config lists no nodes")
	}
	return cfg, nil
}
