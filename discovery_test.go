package cachedemo

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"
)

func TestParseClusterConfig(t *testing.T) {
	cfg, err := parseClusterConfig([]byte("3\nmc1.cache.amazonaws.com|10.0.0.1|11211 mc2.cache.amazonaws.com||11212\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Version != 3 {
		t.Fatalf("expected version 3, got %d", cfg.Version)
	}
	want := []string{"10.0.0.1:11211", "mc2.cache.amazonaws.com:11212"}
	if !reflect.DeepEqual(cfg.Nodes, want) {
		t.Fatalf("expected %v, got %v", want, cfg.Nodes)
	}
}

func TestParseClusterConfigRejectsMalformed(t *testing.T) {
	for _, body := range []string{
		"",
		"1\n",
		"x\nhost|ip|11211\n",
		"1\nhost-without-pipes\n",
		"1\nhost|ip|port\n",
		"1\n||11211\n",
	} {
		if _, err := parseClusterConfig([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestDiscoverClusterAgainstConfigEndpoint(t *testing.T) {
	srv := startFakeMemcached(t)
	srv.serveConfig("7\nnode|10.1.2.3|11211 other|10.1.2.4|11211\n")
	cfg, err := DiscoverCluster(context.Background(), srv.Addr(), time.Second)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if cfg.Version != 7 || len(cfg.Nodes) != 2 || cfg.Nodes[1] != "10.1.2.4:11211" {
		t.Fatalf("unexpected cluster config %+v", cfg)
	}
}

func TestDiscoverClusterPlainMemcached(t *testing.T) {
	srv := startFakeMemcached(t)
	_, err := DiscoverCluster(context.Background(), srv.Addr(), time.Second)
	if !errors.Is(err, errNotConfigEndpoint) {
		t.Fatalf("expected errNotConfigEndpoint, got %v", err)
	}
}

func TestDiscoverClusterRejectsGarbage(t *testing.T) {
	orig := dialMemcached
	t.Cleanup(func() { dialMemcached = orig })
	dialMemcached = func(context.Context, string, string) (net.Conn, error) {
		server, client := net.Pipe()
		go func() {
			defer server.Close()
			buf := make([]byte, 64)
			_, _ = server.Read(buf)
			_, _ = server.Write([]byte("HELLO there\r\n"))
		}()
		return client, nil
	}
	if _, err := DiscoverCluster(context.Background(), "pipe", time.Second); err == nil || errors.Is(err, errNotConfigEndpoint) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}
