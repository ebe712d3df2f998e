// Package blackboard implements the typed, scoped key-value store shared
// among the nodes of a behavior-tree subtree: entries with a type lock,
// a monotonic write sequence, and parent-chain forwarding for subtree
// remapping, guarded by the three-lock discipline spec.md §4.2 mandates.
package blackboard

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// RemapKind is the form an external port expression takes when a subtree
// is entered, per spec.md §4.2.
type RemapKind int

const (
	// RemapByName installs a forwarder from the internal name to a
	// different name in the parent blackboard.
	RemapByName RemapKind = iota
	// RemapSame is the single-character wildcard: external == internal.
	RemapSame
	// RemapLiteral writes an immediate string value into the subtree
	// blackboard instead of forwarding anywhere.
	RemapLiteral
)

// PortRemap is one entry of a subtree's remapping table, built by whatever
// external loader resolves the tree description (spec.md §6 names this as
// the loader's responsibility, not the core's).
type PortRemap struct {
	Internal string
	Kind     RemapKind
	External string
	Literal  string
}

// Blackboard is a mapping from string key to Entry, chained to an optional
// parent for subtree scoping.
type Blackboard struct {
	storageMu sync.Mutex
	entries   map[string]*Entry
	remap     map[string]string
	autoremap bool
	parent    *Blackboard

	entryMu sync.Mutex
	handles map[string]*Entry
}

// New creates a blackboard, optionally chained to parent. A root
// blackboard is created with parent == nil.
func New(parent *Blackboard) *Blackboard {
	return &Blackboard{
		entries: make(map[string]*Entry),
		remap:   make(map[string]string),
		parent:  parent,
		handles: make(map[string]*Entry),
	}
}

// SetAutoRemap toggles the "any miss falls through to the parent under
// the same key" behavior described in spec.md §4.2.
func (bb *Blackboard) SetAutoRemap(on bool) {
	bb.storageMu.Lock()
	defer bb.storageMu.Unlock()
	bb.autoremap = on
}

// Parent returns the blackboard this one is chained to, or nil for a root
// blackboard.
func (bb *Blackboard) Parent() *Blackboard {
	return bb.parent
}

// lookupLocked must be called with storageMu held. It returns the local
// entry for key, creating an autoremap forwarder on first miss when
// autoremapping is enabled.
func (bb *Blackboard) lookupLocked(key string) *Entry {
	if e, ok := bb.entries[key]; ok {
		return e
	}
	if bb.autoremap && bb.parent != nil {
		if parentEntry := bb.parent.GetEntry(key); parentEntry != nil {
			fwd := newForwarder(parentEntry)
			bb.entries[key] = fwd
			return fwd
		}
	}
	return nil
}

// GetEntry resolves key to its Entry handle (following forwarders to the
// owning blackboard's entry object), or nil if the key is unknown locally
// and cannot be autoremapped. This is the "bind ports ahead of first tick"
// primitive spec.md §4.2 describes.
func (bb *Blackboard) GetEntry(key string) *Entry {
	bb.storageMu.Lock()
	e := bb.lookupLocked(key)
	bb.storageMu.Unlock()

	if e == nil {
		return nil
	}

	bb.entryMu.Lock()
	bb.handles[key] = e
	bb.entryMu.Unlock()

	return e
}

// CreateEntry returns the Entry for key, creating an unbound one with the
// given port info if it does not already exist locally.
func (bb *Blackboard) CreateEntry(key string, info *PortInfo) *Entry {
	bb.storageMu.Lock()
	e, ok := bb.entries[key]
	if !ok {
		e = newEntry(info)
		bb.entries[key] = e
	}
	bb.storageMu.Unlock()

	bb.entryMu.Lock()
	bb.handles[key] = e
	bb.entryMu.Unlock()

	return e
}

// Unset removes a local entry. It does not touch the parent blackboard,
// matching spec.md §4.2.
func (bb *Blackboard) Unset(key string) {
	bb.storageMu.Lock()
	delete(bb.entries, key)
	bb.storageMu.Unlock()

	bb.entryMu.Lock()
	delete(bb.handles, key)
	bb.entryMu.Unlock()
}

// Get looks up key (following forwarders) and returns its value converted
// to T, applying the same safe-conversion rules a write would.
func Get[T any](bb *Blackboard, key string) (T, error) {
	var zero T
	entry := bb.GetEntry(key)
	if entry == nil {
		return zero, NewRuntimeError("missing blackboard key %q", key)
	}
	raw, typ, found := entry.read()
	if !found {
		return zero, NewRuntimeError("missing blackboard key %q", key)
	}
	want := reflect.TypeOf(zero)

	if typ == nil {
		// unlocked entry: only a direct type assertion of the raw value
		// (which, for an unlocked entry, is always a string) is possible,
		// or the caller wants a string back.
		if v, ok := raw.(T); ok {
			return v, nil
		}
		if s, ok := raw.(string); ok {
			converted, known, err := convertFromString(want, s)
			if err != nil {
				return zero, err
			}
			if known {
				return converted.(T), nil
			}
		}
		return zero, NewRuntimeError("entry %q is unlocked and cannot be read as %s", key, want)
	}

	if typ == want {
		return raw.(T), nil
	}
	if cast, handled, err := safeNumericCast(raw, want); handled {
		if err != nil {
			return zero, err
		}
		return cast.(T), nil
	}
	if s, ok := raw.(string); ok {
		converted, known, err := convertFromString(want, s)
		if err != nil {
			return zero, err
		}
		if known {
			return converted.(T), nil
		}
	}
	return zero, NewRuntimeError("entry %q holds %s, cannot read as %s", key, typ, want)
}

// Set writes value under key, creating the entry (locked, unless T is
// string and there was no prior declaration) if it does not already
// exist, or applying the type-locking rules of spec.md §4.2 to an
// existing one.
func Set[T any](bb *Blackboard, key string, value T) error {
	vt := reflect.TypeOf(value)
	if av, ok := asAny(value); ok {
		return bb.getOrCreate(key, nil).write(av, anyType)
	}
	entry := bb.getOrCreate(key, &PortInfo{Name: key})
	return entry.write(value, vt)
}

func asAny(value interface{}) (Any, bool) {
	a, ok := value.(Any)
	return a, ok
}

func (bb *Blackboard) getOrCreate(key string, info *PortInfo) *Entry {
	bb.storageMu.Lock()
	e := bb.lookupLocked(key)
	if e == nil {
		e = newEntry(info)
		bb.entries[key] = e
	}
	bb.storageMu.Unlock()
	return e
}

// ApplyRemap installs a subtree's port remapping table, per spec.md §4.2.
// bb is the child subtree's blackboard; names resolve against bb.parent.
func (bb *Blackboard) ApplyRemap(remaps []PortRemap) error {
	if bb.parent == nil {
		return NewLogicError("ApplyRemap called on a blackboard with no parent")
	}
	for _, r := range remaps {
		switch r.Kind {
		case RemapSame:
			target := bb.parent.CreateEntry(r.Internal, nil)
			bb.storageMu.Lock()
			bb.entries[r.Internal] = newForwarder(target)
			bb.remap[r.Internal] = r.Internal
			bb.storageMu.Unlock()
		case RemapByName:
			target := bb.parent.CreateEntry(r.External, nil)
			bb.storageMu.Lock()
			bb.entries[r.Internal] = newForwarder(target)
			bb.remap[r.Internal] = r.External
			bb.storageMu.Unlock()
		case RemapLiteral:
			if err := Set(bb, r.Internal, r.Literal); err != nil {
				return err
			}
		default:
			return NewLogicError("unknown remap kind %d for port %q", r.Kind, r.Internal)
		}
	}
	return nil
}

// CloneInto bulk-copies this blackboard's locally-held entries into dest,
// used to seed a new subtree with a shared starting state.
func (bb *Blackboard) CloneInto(dest *Blackboard) {
	bb.storageMu.Lock()
	type kv struct {
		key string
		e   *Entry
	}
	var snapshot []kv
	for k, e := range bb.entries {
		snapshot = append(snapshot, kv{k, e})
	}
	bb.storageMu.Unlock()

	for _, item := range snapshot {
		resolved := item.e.resolve()
		value, typ, ok := resolved.read()
		if !ok {
			continue
		}
		dest.storageMu.Lock()
		e := newEntry(&PortInfo{Name: item.key, Type: typ})
		dest.entries[item.key] = e
		dest.storageMu.Unlock()
		e.mu.Lock()
		e.value = value
		e.bumpLocked()
		e.mu.Unlock()
	}
}

// Keys returns the locally-held key names, sorted for stable diagnostics.
func (bb *Blackboard) Keys() []string {
	bb.storageMu.Lock()
	defer bb.storageMu.Unlock()
	keys := make([]string, 0, len(bb.entries))
	for k := range bb.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DebugMessage renders a human-readable dump of every locally-held entry.
func (bb *Blackboard) DebugMessage() string {
	var b strings.Builder
	for _, key := range bb.Keys() {
		e := bb.entries[key]
		resolved := e.resolve()
		value, typ, _ := resolved.read()
		forwarded := ""
		if e.forward != nil {
			forwarded = fmt.Sprintf(" -> %s", bb.remap[key])
		}
		fmt.Fprintf(&b, "%s%s: %v (%v)\n", key, forwarded, value, typ)
	}
	return b.String()
}
