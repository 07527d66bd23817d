// Package valkey keeps room documents in Valkey so several server processes
// can share one room store. Mutations use WATCH/MULTI/EXEC optimistic
// transactions.
package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"
)

const defaultAttempts = 8

var errAborted = errors.New("transaction aborted")

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Backend struct {
	client   valkey.Client
	prefix   string
	attempts int
}

// Open connects and pings the server.
func Open(ctx context.Context, opt Options) (*Backend, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{opt.Addr},
		Password:     opt.Password,
		SelectDB:     opt.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", opt.Addr, err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", opt.Addr, err)
	}
	log.Info().Str("module", "storage.valkey").Str("addr", opt.Addr).Int("db", opt.DB).Msg("connected")
	return New(client, opt.Prefix), nil
}

func New(client valkey.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix, attempts: defaultAttempts}
}

func (b *Backend) roomKey(id string) string { return b.prefix + "room:" + id }
func (b *Backend) indexKey() string        { return b.prefix + "rooms" }

func (b *Backend) Close() error {
	b.client.Close()
	return nil
}

func (b *Backend) Get(ctx context.Context, id string) (*domain.Room, error) {
	doc, err := b.client.Do(ctx, b.client.B().Get().Key(b.roomKey(id)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return decode(doc)
}

func (b *Backend) Insert(ctx context.Context, r *domain.Room) error {
	doc, err := encode(r)
	if err != nil {
		return err
	}
	err = b.client.Do(ctx, b.client.B().Set().Key(b.roomKey(r.ID)).Value(doc).Nx().Build()).Error()
	if valkey.IsValkeyNil(err) {
		return domain.ErrDuplicateRoomID
	}
	if err != nil {
		return fmt.Errorf("insert room %s: %w", r.ID, err)
	}
	if err := b.client.Do(ctx, b.client.B().Sadd().Key(b.indexKey()).Member(r.ID).Build()).Error(); err != nil {
		return fmt.Errorf("index room %s: %w", r.ID, err)
	}
	return nil
}

// Mutate retries the optimistic transaction while other writers race it.
func (b *Backend) Mutate(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error) {
	key := b.roomKey(id)
	for attempt := 1; attempt <= b.attempts; attempt++ {
		var out *domain.Room
		err := b.client.Dedicated(func(c valkey.DedicatedClient) error {
			if err := c.Do(ctx, c.B().Watch().Key(key).Build()).Error(); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			doc, err := c.Do(ctx, c.B().Get().Key(key).Build()).ToString()
			if err != nil {
				c.Do(ctx, c.B().Unwatch().Build())
				if valkey.IsValkeyNil(err) {
					return domain.ErrRoomNotFound
				}
				return fmt.Errorf("get: %w", err)
			}
			r, err := decode(doc)
			if err != nil {
				c.Do(ctx, c.B().Unwatch().Build())
				return err
			}
			if err := fn(r); err != nil {
				c.Do(ctx, c.B().Unwatch().Build())
				return err
			}
			next, err := encode(r)
			if err != nil {
				c.Do(ctx, c.B().Unwatch().Build())
				return err
			}
			resp := c.DoMulti(ctx,
				c.B().Multi().Build(),
				c.B().Set().Key(key).Value(next).Build(),
				c.B().Exec().Build(),
			)
			if err := resp[2].Error(); err != nil {
				if valkey.IsValkeyNil(err) {
					return errAborted
				}
				return fmt.Errorf("exec: %w", err)
			}
			out = r
			return nil
		})
		if errors.Is(err, errAborted) {
			log.Debug().Str("module", "storage.valkey").Str("room", id).Int("attempt", attempt).Msg("write conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("mutate room %s: %w after %d attempts", id, errAborted, b.attempts)
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	n, err := b.client.Do(ctx, b.client.B().Del().Key(b.roomKey(id)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	if err := b.client.Do(ctx, b.client.B().Srem().Key(b.indexKey()).Member(id).Build()).Error(); err != nil {
		return fmt.Errorf("unindex room %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (b *Backend) List(ctx context.Context) ([]*domain.Room, error) {
	ids, err := b.client.Do(ctx, b.client.B().Smembers().Key(b.indexKey()).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("list room ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.roomKey(id)
	}
	msgs, err := b.client.Do(ctx, b.client.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	out := make([]*domain.Room, 0, len(msgs))
	for i, m := range msgs {
		if m.IsNil() {
			continue
		}
		doc, err := m.ToString()
		if err != nil {
			return nil, fmt.Errorf("read room %s: %w", ids[i], err)
		}
		r, err := decode(doc)
		if err != nil {
			log.Warn().Err(err).Str("module", "storage.valkey").Str("room", ids[i]).Msg("skipping unreadable room")
			continue
		}
		out = append(out, r)
	}
	sortByCreation(out)
	return out, nil
}

func encode(r *domain.Room) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode room %s: %w", r.ID, err)
	}
	return string(b), nil
}

func decode(doc string) (*domain.Room, error) {
	var r domain.Room
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	r.Normalize()
	return &r, nil
}

func sortByCreation(rs []*domain.Room) {
	slices.SortStableFunc(rs, func(a, b *domain.Room) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
