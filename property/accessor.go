// Package property provides access to the properties of remote servants.
package property

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/api"
	"github.com/louteranas/nomad-viewer/value"
)

// ID is the numeric identifier of a property, as assigned by the remote side.
type ID int32

// Key identifies a property by the name of its servant and its own name.
type Key struct {
	Servant  string
	Property string
}

func (k Key) String() string {
	return k.Servant + "." + k.Property
}

// Declaration describes a resolved property.
type Declaration struct {
	Key      Key
	ID       ID
	Kind     value.Kind
	ReadOnly bool
}

// Accessor reads and writes remote properties by ID.
//
// Resolved declarations are cached for the lifetime of the accessor, so
// repeated resolution of the same property returns the same ID without a
// round trip. Nothing is retried.
type Accessor struct {
	Client api.PropertyClient
	Logger logging.Logger

	m     sync.RWMutex
	byKey map[Key]Declaration
	byID  map[ID]Declaration
}

// ResolveID returns the ID of the named property.
//
// It returns an error that wraps fault.ErrNotFound if the servant or the
// property does not exist.
func (a *Accessor) ResolveID(ctx context.Context, servant, property string) (ID, error) {
	k := Key{servant, property}

	if d, ok := a.lookupKey(k); ok {
		return d.ID, nil
	}

	res, err := a.Client.Resolve(
		ctx,
		&api.ResolveRequest{
			Servant:  servant,
			Property: property,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("unable to resolve %s: %w", k, err)
	}

	d := Declaration{
		Key:      k,
		ID:       ID(res.ID),
		Kind:     res.Kind,
		ReadOnly: res.ReadOnly,
	}

	a.m.Lock()
	if a.byKey == nil {
		a.byKey = map[Key]Declaration{}
		a.byID = map[ID]Declaration{}
	}
	a.byKey[k] = d
	a.byID[d.ID] = d
	a.m.Unlock()

	logging.Debug(a.Logger, "resolved %s to property %d (%s)", k, d.ID, d.Kind)

	return d.ID, nil
}

// Declaration returns the cached declaration of a resolved property.
func (a *Accessor) Declaration(id ID) (Declaration, bool) {
	a.m.RLock()
	defer a.m.RUnlock()

	d, ok := a.byID[id]
	return d, ok
}

// Get reads the current value of the property, which must be of kind k.
//
// It returns a value.MismatchError if the property is declared with a
// different kind. A property that has not been resolved through this accessor
// is still read, the remote side performs the kind check.
func (a *Accessor) Get(ctx context.Context, id ID, k value.Kind) (value.Value, error) {
	if err := a.checkKind(id, k); err != nil {
		return value.Value{}, err
	}

	res, err := a.Client.Get(
		ctx,
		&api.GetRequest{
			ID:   int32(id),
			Kind: k,
		},
	)
	if err != nil {
		return value.Value{}, fmt.Errorf("unable to read property %d: %w", id, err)
	}

	if err := res.Value.Expect(k); err != nil {
		return value.Value{}, err
	}

	return res.Value, nil
}

// Set writes v to the property.
//
// It returns false if the remote side does not accept the value, for example
// because the property is read-only.
func (a *Accessor) Set(ctx context.Context, id ID, v value.Value) (bool, error) {
	if err := a.checkKind(id, v.Kind()); err != nil {
		return false, err
	}

	res, err := a.Client.Set(
		ctx,
		&api.SetRequest{
			ID:    int32(id),
			Value: v,
		},
	)
	if err != nil {
		return false, fmt.Errorf("unable to write property %d: %w", id, err)
	}

	if !res.Accepted {
		logging.Debug(a.Logger, "property %d did not accept %s", id, v)
	}

	return res.Accepted, nil
}

// Get reads the current value of a property of type T.
func Get[T value.Native](ctx context.Context, a *Accessor, id ID) (T, error) {
	v, err := a.Get(ctx, id, value.KindFor[T]())
	if err != nil {
		var zero T
		return zero, err
	}

	return value.As[T](v)
}

// Set writes a value of type T to a property.
func Set[T value.Native](ctx context.Context, a *Accessor, id ID, x T) (bool, error) {
	return a.Set(ctx, id, value.Of(x))
}

func (a *Accessor) lookupKey(k Key) (Declaration, bool) {
	a.m.RLock()
	defer a.m.RUnlock()

	d, ok := a.byKey[k]
	return d, ok
}

func (a *Accessor) checkKind(id ID, k value.Kind) error {
	if d, ok := a.Declaration(id); ok && d.Kind != k {
		return value.MismatchError{Want: k, Got: d.Kind}
	}

	return nil
}
