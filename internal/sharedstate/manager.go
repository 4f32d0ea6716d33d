package sharedstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"golang.org/x/sync/singleflight"
)

// pushTimeout bounds the asynchronous delivery of one optimistic mutation.
// A timed-out push is abandoned; the accompanying operation-log entry still
// carries the intent to the server.
const pushTimeout = 30 * time.Second

// Registry hands out reference-counted cache instances keyed by resource
// (e.g. "workspace-folder:<id>"). It is constructed once and injected;
// there is no package-level state.
type Registry struct {
	mu        sync.Mutex
	instances map[string]*instance
	log       logging.Logger
}

func NewRegistry(log logging.Logger) *Registry {
	return &Registry{
		instances: make(map[string]*instance),
		log:       log,
	}
}

// Acquire returns a handle on the instance for key, creating it (and opening
// the underlying subscription) on first use. adapter is only consulted for a
// new instance; later acquirers share the existing channel. Every handle
// must be closed: the subscription is torn down when the last one goes.
func (r *Registry) Acquire(key string, adapter Adapter) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[key]
	if !ok {
		inst = &instance{
			key:     key,
			adapter: adapter,
			log:     r.log.With("shared_state_key", key),
		}
		unsubscribe, err := adapter.Subscribe(inst.applyRemote)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
		}
		inst.unsubscribe = unsubscribe
		r.instances[key] = inst
	}
	inst.refs++
	return &Handle{registry: r, inst: inst}, nil
}

// ActiveInstances returns the number of live subscriptions, for tests and
// diagnostics.
func (r *Registry) ActiveInstances() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

func (r *Registry) release(inst *instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst.refs--
	if inst.refs > 0 {
		return
	}
	delete(r.instances, inst.key)
	if inst.unsubscribe != nil {
		inst.unsubscribe()
	}
}

// instance is the per-key cache. Mutations are serialized by mu, so readers
// never observe a half-applied document.
type instance struct {
	key     string
	adapter Adapter
	log     logging.Logger

	mu        sync.Mutex
	doc       []byte
	loaded    bool
	changeRef int64
	refs      int

	fetch       singleflight.Group
	unsubscribe func()
}

// applyRemote installs a server-pushed document. Server state overwrites the
// optimistic copy; that is the reconciliation model, not a bug.
func (i *instance) applyRemote(doc []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.doc = append([]byte(nil), doc...)
	i.loaded = true
}

func (i *instance) getDataOnce(ctx context.Context) ([]byte, error) {
	i.mu.Lock()
	if i.loaded {
		doc := append([]byte(nil), i.doc...)
		i.mu.Unlock()
		return doc, nil
	}
	i.mu.Unlock()

	// Coalesce concurrent fetches for the same key into one round trip.
	v, err, _ := i.fetch.Do("fetch", func() (any, error) {
		doc, err := i.adapter.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", i.key, err)
		}
		i.mu.Lock()
		// A subscription push may have landed first; it is newer.
		if !i.loaded {
			i.doc = append([]byte(nil), doc...)
			i.loaded = true
		}
		doc = append([]byte(nil), i.doc...)
		i.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Mutator transforms a document. Returning changed=false cancels the update:
// nothing is stored, nothing is pushed, no change ref is produced.
type Mutator func(doc []byte) (updated []byte, changed bool)

func (i *instance) updateOptimistic(ctx context.Context, mutate Mutator) (models.ChangeRef, error) {
	if _, err := i.getDataOnce(ctx); err != nil {
		return 0, err
	}

	i.mu.Lock()
	updated, changed := mutate(append([]byte(nil), i.doc...))
	if !changed {
		i.mu.Unlock()
		return 0, nil
	}
	i.doc = updated
	i.changeRef++
	ref := i.changeRef
	i.mu.Unlock()

	// The caller-visible mutation is done; delivery happens in the
	// background and is never rolled back on failure.
	go func() {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := i.adapter.Push(pushCtx, Mutation{ChangeRef: ref, Document: updated}); err != nil {
			i.log.Warn(pushCtx, "shared state push failed, awaiting server reconciliation",
				"change_ref", ref, "error", err)
		}
	}()

	return models.ChangeRef(ref), nil
}

// Handle is a reference-counted view on one cache instance. Close releases
// the reference; the zero value is not usable.
type Handle struct {
	registry *Registry
	inst     *instance
	once     sync.Once
}

// GetDataOnce returns the current document snapshot, fetching through the
// adapter only if nothing is cached yet.
func (h *Handle) GetDataOnce(ctx context.Context) ([]byte, error) {
	return h.inst.getDataOnce(ctx)
}

// UpdateOptimistic applies mutate to the cached copy immediately (readers
// observe the change before any network round trip), then pushes the delta
// asynchronously. The returned change ref is zero when the mutator declined
// to change anything.
func (h *Handle) UpdateOptimistic(ctx context.Context, mutate Mutator) (models.ChangeRef, error) {
	return h.inst.updateOptimistic(ctx, mutate)
}

// Close releases this handle's reference. Safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.registry.release(h.inst)
	})
}
