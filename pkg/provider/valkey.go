package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStore keeps route answers in Valkey so several instances share them.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore wraps an existing client.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "ecoroute"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// DialValkey connects to addr, which may be host:port or a redis:// URL,
// and checks the connection with PING.
func DialValkey(ctx context.Context, addr string) (valkey.Client, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse valkey url: %w", err)
		}
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping: %w", err)
	}
	return client, nil
}

func (s *ValkeyStore) routeKey(key string) string {
	return fmt.Sprintf("%s:route:%s", s.prefix, key)
}

// Get implements Store.
func (s *ValkeyStore) Get(ctx context.Context, key string) (Route, bool, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(s.routeKey(key)).Build())
	payload, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return Route{}, false, nil
		}
		return Route{}, false, err
	}

	var route Route
	if err := json.Unmarshal([]byte(payload), &route); err != nil {
		return Route{}, false, fmt.Errorf("decode cached route: %w", err)
	}
	return route, true, nil
}

// Set implements Store.
func (s *ValkeyStore) Set(ctx context.Context, key string, route Route, ttl time.Duration) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("encode route: %w", err)
	}
	builder := s.client.B().Set().Key(s.routeKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

var _ Store = (*ValkeyStore)(nil)
