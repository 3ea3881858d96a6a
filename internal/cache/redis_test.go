package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respServer speaks enough RESP2 for GET, SET, DEL and PING. HELLO is
// refused so the client stays on RESP2.
type respServer struct {
	mu   sync.Mutex
	data map[string]string
	cmds [][]string
}

func startRESP(t *testing.T) (*respServer, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &respServer{data: map[string]string{}}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s, ln.Addr().String()
}

func (s *respServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.reply(args)); err != nil {
			return
		}
	}
}

func (s *respServer) reply(args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, args)

	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "CLIENT":
		return "+OK\r\n"
	case "GET":
		v, ok := s.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		s.data[args[1]] = args[2]
		return "+OK\r\n"
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	default:
		return "-ERR unknown command '" + args[0] + "'\r\n"
	}
}

func (s *respServer) sent(name string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]string
	for _, c := range s.cmds {
		if strings.EqualFold(c[0], name) {
			out = append(out, c)
		}
	}
	return out
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected frame %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad array header %q", line)
	}
	args := make([]string, n)
	for i := range args {
		head, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(head, "$")))
		if err != nil {
			return nil, fmt.Errorf("bad bulk header %q", head)
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	return args, nil
}

func TestIsMiss(t *testing.T) {
	assert.True(t, IsMiss(redis.Nil))
	assert.True(t, IsMiss(fmt.Errorf("catalog: %w", redis.Nil)))
	assert.False(t, IsMiss(errors.New("dial tcp: connection refused")))
	assert.False(t, IsMiss(nil))
}

func TestDeleteWithoutKeysSkipsServer(t *testing.T) {
	// nothing listens here; a round trip would fail
	r := New("127.0.0.1:1")
	defer r.Close()
	assert.NoError(t, r.Delete(context.Background()))
}

func TestRedisRoundTrip(t *testing.T) {
	srv, addr := startRESP(t)
	r := New(addr)
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.Ping(ctx))

	_, err := r.GetString(ctx, "catalog:services")
	assert.True(t, IsMiss(err), "expected miss, got %v", err)

	require.NoError(t, r.SetString(ctx, "catalog:services", `[{"_id":"s1"}]`, time.Minute))
	got, err := r.GetString(ctx, "catalog:services")
	require.NoError(t, err)
	assert.Equal(t, `[{"_id":"s1"}]`, got)

	sets := srv.sent("SET")
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"set", "catalog:services", `[{"_id":"s1"}]`, "ex", "60"}, sets[0])

	require.NoError(t, r.Delete(ctx, "catalog:services", "catalog:prints"))
	_, err = r.GetString(ctx, "catalog:services")
	assert.True(t, IsMiss(err), "expected miss after delete, got %v", err)
}

func TestRedisSetWithoutTTL(t *testing.T) {
	srv, addr := startRESP(t)
	r := New(addr)
	defer r.Close()

	require.NoError(t, r.SetString(context.Background(), "k", "v", 0))
	sets := srv.sent("SET")
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"set", "k", "v"}, sets[0])
}

func TestRedisUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	r := New(addr)
	defer r.Close()
	_, err = r.GetString(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, IsMiss(err))
}
