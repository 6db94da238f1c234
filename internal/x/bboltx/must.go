package bboltx

import "go.etcd.io/bbolt"

// PanicSentinel wraps errors raised by Must() so that Recover() can tell them
// apart from unrelated panics.
type PanicSentinel struct {
	Cause error
}

// Must panics with a PanicSentinel if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(PanicSentinel{err})
	}
}

// Recover assigns the cause of a panic raised by Must() to *err.
//
// It must be called directly by a deferred statement. Other panics are
// re-raised.
func Recover(err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	switch v := recover().(type) {
	case PanicSentinel:
		*err = v.Cause
	case nil:
		return
	default:
		panic(v)
	}
}

// Update runs fn in a read-write transaction.
//
// fn may use the Must-style helpers in this package. Their failures roll
// back the transaction and are returned as errors.
func Update(db *bbolt.DB, fn func(tx *bbolt.Tx)) error {
	return db.Update(func(tx *bbolt.Tx) (err error) {
		defer Recover(&err)
		fn(tx)
		return nil
	})
}

// View runs fn in a read-only transaction.
func View(db *bbolt.DB, fn func(tx *bbolt.Tx)) error {
	return db.View(func(tx *bbolt.Tx) (err error) {
		defer Recover(&err)
		fn(tx)
		return nil
	})
}
