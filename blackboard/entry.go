package blackboard

import (
	"reflect"
	"sync"
	"time"
)

// Direction is the declared purpose of a port: whether the node that owns
// it reads, writes, or does both through the entry it is bound to.
type Direction int

const (
	Input Direction = iota
	Output
	InOut
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "Input"
	case Output:
		return "Output"
	case InOut:
		return "InOut"
	default:
		return "Unknown"
	}
}

// PortInfo describes how an entry was originally declared: the direction
// the declaring port uses it in and the Go type it was bound to, if any.
// Type == nil means the port declared no type: the entry then locks on its
// first strongly typed write, unless Generic is set.
type PortInfo struct {
	Name        string
	Direction   Direction
	Type        reflect.Type
	Default     string
	Description string
	// Generic marks a port declared with the library's "any type allowed"
	// sentinel (spec.md §4.2 rule 2) — distinct from an entry that simply
	// has no declared type yet because it was created by an ad hoc string
	// write (rule 4), which locks on its first strongly typed write.
	Generic bool
}

// Entry is one blackboard slot: a type-erased value plus the bookkeeping
// spec.md §3 requires — a lock on the bound C++ (here, Go) type, a
// monotonic sequence id bumped on every write, a last-write timestamp, and
// an optional forwarding pointer used by subtree remapping.
//
// Every field below value/typ/locked/seq/timestamp is guarded by mu; the
// forward pointer is set once at creation and never mutated afterward, so
// it is safe to dereference without holding mu.
type Entry struct {
	mu        sync.Mutex
	value     interface{}
	typ       reflect.Type
	locked    bool
	info      *PortInfo
	seq       uint64
	timestamp time.Time

	forward *Entry
}

func newEntry(info *PortInfo) *Entry {
	e := &Entry{info: info}
	if info != nil && info.Type != nil {
		e.typ = info.Type
		e.locked = true
	}
	return e
}

func newForwarder(target *Entry) *Entry {
	return &Entry{forward: target}
}

// resolve follows the forwarding chain to the entry that actually owns
// the value and lock, per spec.md §4.2: "if the local entry is a
// forwarder, the lookup follows to the target and operates on the
// target's value and lock."
func (e *Entry) resolve() *Entry {
	for e.forward != nil {
		e = e.forward
	}
	return e
}

// Type reports the currently locked Go type, or nil if the entry is
// unlocked (created implicitly by a bare string write with no prior
// port declaration).
func (e *Entry) Type() reflect.Type {
	r := e.resolve()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typ
}

// SequenceID returns the monotonic write counter reactive decorators use
// to detect "new data since I last looked."
func (e *Entry) SequenceID() uint64 {
	r := e.resolve()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Timestamp returns the time of the most recent write.
func (e *Entry) Timestamp() time.Time {
	r := e.resolve()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timestamp
}

// read copies out the raw value and its type under the entry lock, so the
// value/sequence/timestamp triple observed is always internally
// consistent — the historical bug preserved in spec.md §9 was exactly a
// reader seeing one field updated and another stale.
func (e *Entry) read() (interface{}, reflect.Type, bool) {
	r := e.resolve()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.typ, r.typ != nil || r.value != nil || r.locked
}

// write applies spec.md §4.2's type-locking rules 1-7 and, on success,
// bumps the sequence id and timestamp under the same critical section as
// the value write.
func (e *Entry) write(value interface{}, vt reflect.Type) error {
	r := e.resolve()
	r.mu.Lock()
	defer r.mu.Unlock()

	if vt == anyType {
		// Rule 6: BT::Any bypasses the type check entirely.
		wrapped := value.(Any)
		r.value = wrapped.Value
		if wrapped.Value != nil {
			r.typ = reflect.TypeOf(wrapped.Value)
		}
		r.bumpLocked()
		return nil
	}

	generic := r.info != nil && r.info.Generic

	if generic {
		r.value = value
		r.typ = vt
		r.bumpLocked()
		return nil
	}

	if !r.locked {
		// Rule 4: an unlocked entry is locked by the first strongly typed
		// write. A plain string write leaves it unlocked, since that is
		// how unlocked entries are created in the first place.
		r.value = value
		if vt != reflect.TypeOf("") {
			r.typ = vt
			r.locked = true
		} else {
			r.typ = nil
		}
		r.bumpLocked()
		return nil
	}

	if vt == r.typ {
		// Rule 1: same type.
		r.value = value
		r.bumpLocked()
		return nil
	}

	if vt == reflect.TypeOf("") {
		// Rule 3: string through the registered convertFromString.
		converted, known, err := convertFromString(r.typ, value.(string))
		if err != nil {
			return err
		}
		if !known {
			return NewRuntimeError("no convertFromString registered for %s", r.typ)
		}
		r.value = converted
		r.bumpLocked()
		return nil
	}

	if cast, handled, err := safeNumericCast(value, r.typ); handled {
		// Rule 5: safe numeric cast between arithmetic types.
		if err != nil {
			return err
		}
		r.value = cast
		r.bumpLocked()
		return nil
	}

	// Rule 7: anything else is a mismatch.
	return NewLogicError("write to locked entry: cannot assign %s into entry locked to %s", vt, r.typ)
}

func (e *Entry) bumpLocked() {
	e.seq++
	e.timestamp = time.Now()
}
