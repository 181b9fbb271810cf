package portal

import "net/http"

// headerBag is the session's explicit ordered header set. Merge points are
// documented on the session: login resets the bag, the config step merges
// organization context, the byte transfer sets and then restores
// content-type. Not safe for concurrent use.
type headerBag struct {
	keys   []string
	values map[string]string
}

func newHeaderBag() *headerBag {
	return &headerBag{values: make(map[string]string)}
}

func (b *headerBag) Set(key, value string) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
}

func (b *headerBag) Get(key string) string {
	return b.values[key]
}

func (b *headerBag) Del(key string) {
	if _, ok := b.values[key]; !ok {
		return
	}
	delete(b.values, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Clone returns an independent copy. Per-call header additions work on a
// clone so they never leak back into the session bag.
func (b *headerBag) Clone() *headerBag {
	out := newHeaderBag()
	for _, key := range b.keys {
		out.Set(key, b.values[key])
	}
	return out
}

// apply copies the bag onto an outgoing request in insertion order.
func (b *headerBag) apply(req *http.Request) {
	for _, key := range b.keys {
		req.Header.Set(key, b.values[key])
	}
}
