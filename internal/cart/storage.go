package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCorrupt is returned when stored cart data cannot be decoded
var ErrCorrupt = errors.New("stored cart is corrupt")

// Storage persists a single cart. Load returns an empty cart when nothing
// has been saved yet.
type Storage interface {
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}

func decode(data []byte) (*Cart, error) {
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c.normalize()
	return c, nil
}

func encode(c *Cart) ([]byte, error) {
	if c == nil {
		c = New()
	}
	return json.Marshal(c)
}

// MemoryStorage keeps the encoded cart in memory
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load(context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return New(), nil
	}
	return decode(s.data)
}

func (s *MemoryStorage) Save(_ context.Context, c *Cart) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// FileStorage keeps the cart as JSON in a file. Saves replace the file
// atomically so a reader never sees a partial write.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Load(context.Context) (*Cart, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file: %w", err)
	}
	return decode(data)
}

func (s *FileStorage) Save(_ context.Context, c *Cart) error {
	data, err := encode(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cart dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cart-*.json")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cart file: %w", err)
	}
	return nil
}

// RedisStorage keeps the cart under one Redis key, for clients that run on
// more than one host. A zero ttl keeps the cart forever.
type RedisStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, key string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, key: key, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context) (*Cart, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return decode(data)
}

func (s *RedisStorage) Save(ctx context.Context, c *Cart) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cart: %w", err)
	}
	return nil
}
