package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	redisclient "github.com/hiveride/dispatch/pkg/redis"
)

// fakeRedis is an in-memory redisclient.ClientInterface. TTLs are recorded
// but never enforced; tests assert on them directly where they matter.
type fakeRedis struct {
	mu      sync.Mutex
	strings map[string]string
	lists   map[string][]string
	sets    map[string]map[string]bool
	geo     map[string]map[string][2]float64
	ttls    map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		sets:    make(map[string]map[string]bool),
		geo:     make(map[string]map[string][2]float64),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeRedis) SetWithExpiration(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.strings[key] = v
	case []byte:
		f.strings[key] = string(v)
	}
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) GetString(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strings[key], nil
}

func (f *fakeRedis) CompareAndSet(_ context.Context, key, expected, value string, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.strings[key] != expected {
		return false, nil
	}
	f.strings[key] = value
	f.ttls[key] = expiration
	return true, nil
}

func (f *fakeRedis) DeleteIfEquals(_ context.Context, key, expected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.strings[key]; !ok || cur != expected {
		return false, nil
	}
	delete(f.strings, key)
	return true, nil
}

func (f *fakeRedis) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.strings, key)
		delete(f.lists, key)
		delete(f.sets, key)
		delete(f.geo, key)
	}
	return nil
}

func (f *fakeRedis) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.strings[key]; ok {
		return true, nil
	}
	if _, ok := f.lists[key]; ok {
		return true, nil
	}
	return false, nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	return nil
}

func (f *fakeRedis) LPop(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	head := list[0]
	f.lists[key] = list[1:]
	return head, true, nil
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if stop == -1 {
		stop = int64(len(list)) - 1
	}
	if start >= int64(len(list)) {
		return nil, nil
	}
	return append([]string(nil), list[start:stop+1]...), nil
}

func (f *fakeRedis) SAdd(_ context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]bool)
	}
	for _, m := range members {
		f.sets[key][m.(string)] = true
	}
	return nil
}

func (f *fakeRedis) SRem(_ context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], m.(string))
	}
	return nil
}

func (f *fakeRedis) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (f *fakeRedis) GeoAdd(_ context.Context, key string, longitude, latitude float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.geo[key] == nil {
		f.geo[key] = make(map[string][2]float64)
	}
	f.geo[key][member] = [2]float64{longitude, latitude}
	return nil
}

func (f *fakeRedis) GeoSearchWithDist(_ context.Context, key string, _, _, _ float64, count int) ([]redisclient.GeoMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]redisclient.GeoMember, 0, len(f.geo[key]))
	for name := range f.geo[key] {
		members = append(members, redisclient.GeoMember{Name: name})
		if count > 0 && len(members) == count {
			break
		}
	}
	return members, nil
}

func (f *fakeRedis) GeoRemove(_ context.Context, key string, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.geo[key], member)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

// keysWithPrefix helps tests assert on the key layout.
func (f *fakeRedis) keysWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.strings {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

var _ redisclient.ClientInterface = (*fakeRedis)(nil)
