package marketplace

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/xraph/marketplace/entity"
	"github.com/xraph/marketplace/store"
)

const (
	maxKeyLen  = 128
	maxHashLen = 256
	maxNameLen = 256

	// Amounts are stored in signed 64-bit columns by the SQL backends.
	maxAmount = math.MaxInt64
)

// requireKey validates a caller-chosen business key such as a shareId.
func requireKey(field, v string) error {
	switch {
	case v == "":
		return invalid(field, "must not be empty")
	case len(v) > maxKeyLen:
		return invalid(field, "too long")
	}
	return nil
}

// requireHash validates a mandatory content hash.
func requireHash(field, v string) error {
	if v == "" {
		return invalid(field, "must not be empty")
	}
	return optionalHash(field, v)
}

// optionalHash validates a content hash that may be left empty.
func optionalHash(field, v string) error {
	if len(v) > maxHashLen {
		return invalid(field, "too long")
	}
	return nil
}

// requireAmount validates a strictly positive amount.
func requireAmount(field string, v uint64) error {
	if v == 0 {
		return invalid(field, "must be greater than zero")
	}
	return boundedAmount(field, v)
}

// boundedAmount validates an amount that may be zero.
func boundedAmount(field string, v uint64) error {
	if v > maxAmount {
		return invalid(field, "too large")
	}
	return nil
}

func requireCaller(caller Caller, op string) error {
	if caller.ID == "" {
		return deny(caller, op)
	}
	return nil
}

// activeEntity loads a registered, active entity of the given kind.
func activeEntity(ctx context.Context, tx store.Tx, field, shareID string, kind entity.Kind) (*entity.Entity, error) {
	e, err := entityOfKind(ctx, tx, field, shareID, kind)
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, ErrEntityInactive
	}
	return e, nil
}

// entityOfKind loads a registered entity of the given kind, active or not.
func entityOfKind(ctx context.Context, tx store.Tx, field, shareID string, kind entity.Kind) (*entity.Entity, error) {
	e, err := tx.GetEntity(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if e.Kind != kind {
		return nil, invalid(field, "entity is not a "+string(kind))
	}
	return e, nil
}

// found folds a lookup error into a presence flag: not-found becomes
// (false, nil) and any other error is returned as is.
func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// aggregateID names a numbered record in event envelopes, e.g. "listing/7".
func aggregateID(kind string, n uint64) string {
	return kind + "/" + strconv.FormatUint(n, 10)
}
