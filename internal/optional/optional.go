package optional

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

type Opt[T any] struct {
	value    T
	hasValue bool
}

var errMissingValue = errors.New("cannot get missing value")

func New[T any](value T) Opt[T] {
	return Opt[T]{
		value:    value,
		hasValue: true,
	}
}

func Empty[T any]() Opt[T] {
	return Opt[T]{
		hasValue: false,
	}
}

func (o Opt[T]) Has() bool {
	return o.hasValue
}

func (o Opt[T]) Get() (T, error) {
	if o.Has() {
		return o.value, nil
	}
	return o.value, errMissingValue
}

func (o Opt[T]) Else(e T) T {
	if o.Has() {
		return o.value
	}
	return e
}

// Implements the Scanner interface in order to scan values from SQLite row
func (o *Opt[T]) Scan(src any) error {
	var v sql.Null[T]
	if err := v.Scan(src); err != nil {
		return err
	}

	if v.Valid {
		*o = New(v.V)
	} else {
		*o = Empty[T]()
	}

	return nil
}

// Implements the Valuer interface in order to write to SQLite. Value receiver
// so that both Opt and *Opt satisfy driver.Valuer.
func (o Opt[T]) Value() (driver.Value, error) {
	if o.hasValue {
		return driver.DefaultParameterConverter.ConvertValue(o.value)
	}
	return nil, nil
}

// Empty values marshal to null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.hasValue {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Empty[T]()
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = New(v)
	return nil
}

func (o Opt[T]) String() string {
	if o.hasValue {
		return fmt.Sprintf("%v", o.value)
	}
	return "empty"
}
