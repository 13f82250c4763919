package cachedemo

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeMemcached speaks enough of the memcached text protocol for the
// gomemcache client and the cluster discovery handshake.
type fakeMemcached struct {
	ln net.Listener

	mu       sync.Mutex
	data     map[string][]byte
	exptimes map[string]int
	commands []string
	config   string // body served for "config get cluster"; empty -> ERROR
}

func startFakeMemcached(t *testing.T) *fakeMemcached {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeMemcached{
		ln:       ln,
		data:     make(map[string][]byte),
		exptimes: make(map[string]int),
	}
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeMemcached) Addr() string { return f.ln.Addr().String() }

func (f *fakeMemcached) serveConfig(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config = body
}

func (f *fakeMemcached) value(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeMemcached) exptime(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exptimes[key]
}

func (f *fakeMemcached) count(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c == command {
			n++
		}
	}
	return n
}

func (f *fakeMemcached) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMemcached) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		f.mu.Lock()
		f.commands = append(f.commands, parts[0])
		switch parts[0] {
		case "get", "gets":
			for _, key := range parts[1:] {
				if v, ok := f.data[key]; ok {
					if parts[0] == "gets" {
						fmt.Fprintf(w, "VALUE %s 0 %d 1\r\n", key, len(v))
					} else {
						fmt.Fprintf(w, "VALUE %s 0 %d\r\n", key, len(v))
					}
					w.Write(v)
					w.WriteString("\r\n")
				}
			}
			w.WriteString("END\r\n")
		case "set", "add":
			// <cmd> <key> <flags> <exptime> <bytes>
			if len(parts) < 5 {
				w.WriteString("ERROR\r\n")
				break
			}
			key := parts[1]
			exp, _ := strconv.Atoi(parts[3])
			n, _ := strconv.Atoi(parts[4])
			buf := make([]byte, n+2)
			f.mu.Unlock()
			_, err := io.ReadFull(r, buf)
			f.mu.Lock()
			if err != nil {
				f.mu.Unlock()
				return
			}
			if _, exists := f.data[key]; exists && parts[0] == "add" {
				w.WriteString("NOT_STORED\r\n")
				break
			}
			f.data[key] = buf[:n]
			f.exptimes[key] = exp
			w.WriteString("STORED\r\n")
		case "delete":
			if len(parts) < 2 {
				w.WriteString("ERROR\r\n")
				break
			}
			if _, ok := f.data[parts[1]]; !ok {
				w.WriteString("NOT_FOUND\r\n")
				break
			}
			delete(f.data, parts[1])
			w.WriteString("DELETED\r\n")
		case "flush_all":
			f.data = make(map[string][]byte)
			w.WriteString("OK\r\n")
		case "version":
			w.WriteString("VERSION 1.6.21\r\n")
		case "config":
			if f.config == "" {
				w.WriteString("ERROR\r\n")
				break
			}
			fmt.Fprintf(w, "CONFIG cluster 0 %d\r\n%s\r\nEND\r\n", len(f.config), f.config)
		default:
			w.WriteString("ERROR\r\n")
		}
		f.mu.Unlock()
		if err := w.Flush(); err != nil {
			return
		}
	}
}
