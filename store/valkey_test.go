package store

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"hrms-service/config"

	"github.com/stretchr/testify/assert"
)

// fakeValkey answers RESP commands over in-memory pipes.
type fakeValkey struct {
	mu       sync.Mutex
	data     map[string]string
	commands [][]string
	failOn   string
}

func newFakeValkey(t *testing.T) *fakeValkey {
	t.Helper()
	fake := &fakeValkey{data: make(map[string]string)}
	originalDial := dialContext
	dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		client, server := net.Pipe()
		go fake.serve(server)
		return client, nil
	}
	t.Cleanup(func() { dialContext = originalDial })
	return fake
}

func (f *fakeValkey) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		args, err := readArray(reader)
		if err != nil {
			return
		}
		if _, err := conn.Write([]byte(f.reply(args))); err != nil {
			return
		}
	}
}

func (f *fakeValkey) reply(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, args)

	if f.failOn != "" && strings.EqualFold(args[0], f.failOn) {
		return "-ERR forced failure\r\n"
	}
	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "AUTH", "SELECT":
		return "+OK\r\n"
	case "SET":
		f.data[args[1]] = args[2]
		return "+OK\r\n"
	case "GET":
		value, ok := f.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return "$" + strconv.Itoa(len(value)) + "\r\n" + value + "\r\n"
	default:
		return "-ERR unknown command\r\n"
	}
}

func readArray(reader *bufio.Reader) ([]string, error) {
	header, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(header)[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			return nil, err
		}
		value, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		args = append(args, strings.TrimSuffix(value, "\r\n"))
	}
	return args, nil
}

func TestValkeyStoreRevocationRoundTrip(t *testing.T) {
	fake := newFakeValkey(t)
	store, err := NewValkeyStore(config.ValkeyConfig{Addr: "valkey:6379", Password: "pw", DB: 2, Prefix: "hrms:revoked"})
	assert.NoError(t, err)

	ctx := context.Background()
	_, found, err := store.RevokedAt(ctx, "user-1")
	assert.NoError(t, err)
	assert.False(t, found)

	at := time.Unix(1700000000, 0)
	assert.NoError(t, store.RevokeUser(ctx, "user-1", at, time.Hour))

	revokedAt, found, err := store.RevokedAt(ctx, "user-1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.True(t, at.Equal(revokedAt))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "1700000000", fake.data["hrms:revoked:user-1"])
	var set []string
	for _, cmd := range fake.commands {
		if cmd[0] == "SET" {
			set = cmd
		}
	}
	assert.Equal(t, []string{"SET", "hrms:revoked:user-1", "1700000000", "EX", "3600"}, set)
	assert.Equal(t, []string{"AUTH", "pw"}, fake.commands[0])
	assert.Equal(t, []string{"SELECT", "2"}, fake.commands[1])
	assert.NoError(t, store.Close())
}

func TestValkeyStoreErrorReply(t *testing.T) {
	fake := newFakeValkey(t)
	store, err := NewValkeyStore(config.ValkeyConfig{Addr: "valkey:6379", Prefix: "p"})
	assert.NoError(t, err)

	fake.failOn = "GET"
	_, _, err = store.RevokedAt(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestValkeyStoreUnexpectedValue(t *testing.T) {
	fake := newFakeValkey(t)
	store, err := NewValkeyStore(config.ValkeyConfig{Addr: "valkey:6379", Prefix: "p"})
	assert.NoError(t, err)

	fake.data["p:user-1"] = "not-a-number"
	_, _, err = store.RevokedAt(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestNewValkeyStoreDialError(t *testing.T) {
	originalDial := dialContext
	dialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, errors.New("dial error")
	}
	defer func() { dialContext = originalDial }()

	_, err := NewValkeyStore(config.ValkeyConfig{Addr: "valkey:6379"})
	assert.Error(t, err)
}

func TestReadResponseVariants(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+OK\r\n", "OK", false},
		{":3\r\n", "3", false},
		{"$5\r\nhello\r\n", "hello", false},
		{"$-1\r\n", "", false},
		{"-ERR bad\r\n", "", true},
		{"$x\r\n", "", true},
		{"?\r\n", "", true},
		{"\r\n", "", true},
	}
	for _, tc := range cases {
		got, err := readResponse(bufio.NewReader(strings.NewReader(tc.input)))
		if tc.wantErr {
			assert.Error(t, err, tc.input)
			continue
		}
		assert.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got)
	}
}
