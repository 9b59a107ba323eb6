package defunc

import (
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"
	"unsafe"
	"weak"

	"github.com/teemow/defunc/internal/logging"
)

// minFinalizedSize is the smallest instance size TrackFinalized accepts.
// Smaller pointer-free objects share a tiny-allocator block and their cleanups
// may never run.
const minFinalizedSize = 16

// ID identifies a tracked instance. Zero is never assigned.
type ID uint64

// Instance is a snapshot of one live tracked instance.
type Instance struct {
	ID      ID
	Type    string
	Created time.Time
}

// Age returns how long the instance has been alive at now.
func (i Instance) Age(now time.Time) time.Duration {
	return now.Sub(i.Created)
}

type record struct {
	id      ID
	typ     *Type
	created time.Time
	key     any
}

// releaseFunc is invoked after a record is removed, outside the auditor lock.
type releaseFunc func(rec record, age time.Duration, stale bool)

// Auditor records the creation time of live instances and reports those that
// outlive the staleness threshold when they are released.
type Auditor struct {
	mu        sync.Mutex
	clock     func() time.Time
	threshold time.Duration
	nextID    ID
	records   map[ID]*record
	byKey     map[any]ID

	onTrack   func(t *Type)
	onRelease releaseFunc
}

func newAuditor(threshold time.Duration, clock func() time.Time) *Auditor {
	return &Auditor{
		clock:     clock,
		threshold: threshold,
		records:   make(map[ID]*record),
		byKey:     make(map[any]ID),
	}
}

// Threshold returns the staleness threshold.
func (a *Auditor) Threshold() time.Duration {
	return a.threshold
}

// Count returns the number of live tracked instances.
func (a *Auditor) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Live returns the live instances ordered by creation.
func (a *Auditor) Live() []Instance {
	a.mu.Lock()
	out := make([]Instance, 0, len(a.records))
	for _, rec := range a.records {
		out = append(out, Instance{ID: rec.id, Type: rec.typ.name, Created: rec.created})
	}
	a.mu.Unlock()

	slices.SortFunc(out, func(x, y Instance) int {
		if c := x.Created.Compare(y.Created); c != 0 {
			return c
		}
		if x.ID < y.ID {
			return -1
		}
		if x.ID > y.ID {
			return 1
		}
		return 0
	})
	return out
}

// Overdue returns the live instances whose age already exceeds the threshold.
func (a *Auditor) Overdue() []Instance {
	now := a.clock()
	var out []Instance
	for _, inst := range a.Live() {
		if inst.Age(now) > a.threshold {
			out = append(out, inst)
		}
	}
	return out
}

// Release drops the record for id. Unknown or already released ids are ignored.
func (a *Auditor) Release(id ID) {
	a.mu.Lock()
	rec, ok := a.records[id]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.records, id)
	if rec.key != nil {
		delete(a.byKey, rec.key)
	}
	age := a.clock().Sub(rec.created)
	a.mu.Unlock()

	if a.onRelease != nil {
		a.onRelease(*rec, age, age > a.threshold)
	}
}

func (a *Auditor) releaseKey(key any) {
	a.mu.Lock()
	id, ok := a.byKey[key]
	a.mu.Unlock()
	if ok {
		a.Release(id)
	}
}

// track records key for t. It returns the existing id when key is already live.
func (a *Auditor) track(t *Type, key any) (ID, bool) {
	a.mu.Lock()
	if key != nil {
		if id, ok := a.byKey[key]; ok {
			a.mu.Unlock()
			return id, false
		}
	}
	a.nextID++
	id := a.nextID
	a.records[id] = &record{id: id, typ: t, created: a.clock(), key: key}
	if key != nil {
		a.byKey[key] = id
	}
	a.mu.Unlock()

	if a.onTrack != nil {
		a.onTrack(t)
	}
	return id, true
}

// TrackNew records an anonymous instance of t and returns its id. The caller
// releases it with Type.ReleaseID. Internal types are not tracked and yield 0.
func (t *Type) TrackNew() ID {
	if t.internal {
		return 0
	}
	id, _ := t.engine.auditor.track(t, nil)
	return id
}

// Track records obj as a live instance of t. Tracking the same pointer twice
// returns the original id. Nil pointers and internal types yield 0.
//
// Instances of zero-size types all share one address, so they are tracked
// anonymously: every call yields a new id, and Release cannot find them.
// Release those with Type.ReleaseID.
func Track[T any](t *Type, obj *T) ID {
	id, _ := trackPointer(t, obj)
	return id
}

// TrackFinalized is Track plus a release when the garbage collector reclaims obj.
//
// Types smaller than 16 bytes are rejected with a warning and yield 0: the
// runtime batches small pointer-free objects into shared blocks, so their
// cleanups are not guaranteed to run and the record would never be released.
// Use Track and Release for those types.
func TrackFinalized[T any](t *Type, obj *T) ID {
	if obj == nil || t.internal {
		return 0
	}
	if size := unsafe.Sizeof(*obj); size < minFinalizedSize {
		t.engine.logger.Warn("instance too small for GC-driven release",
			logging.Type(t.name), "size", size)
		return 0
	}
	id, created := trackPointer(t, obj)
	if created {
		a := t.engine.auditor
		runtime.AddCleanup(obj, func(id ID) { a.Release(id) }, id)
	}
	return id
}

// Release reports that obj is gone. Untracked pointers are ignored.
func Release[T any](t *Type, obj *T) {
	if obj == nil || unsafe.Sizeof(*obj) == 0 {
		return
	}
	t.engine.auditor.releaseKey(weak.Make(obj))
}

func trackPointer[T any](t *Type, obj *T) (ID, bool) {
	if obj == nil || t.internal {
		return 0, false
	}
	if unsafe.Sizeof(*obj) == 0 {
		return t.engine.auditor.track(t, nil)
	}
	return t.engine.auditor.track(t, weak.Make(obj))
}

// stalenessLine renders the report for a released instance.
func stalenessLine(typeName string, id ID, age time.Duration) string {
	return "Collecting " + typeName + " with id " + strconv.FormatUint(uint64(id), 10) +
		" which stayed in memory for " + strconv.FormatFloat(age.Seconds(), 'f', -1, 64) + "s"
}
