package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Optional tracks whether a JSON key was present and whether it was null.
// The zero value is an absent field.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a present, non-null Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Null returns a present Optional holding JSON null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key is present
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON writes null for absent and null values
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UpdateItem is a partial patch over an Item.
// An absent field is left untouched. An explicit null clears brand and is
// rejected for name and price.
type UpdateItem struct {
	Name  Optional[string]  `json:"name"`
	Price Optional[float64] `json:"price"`
	Brand Optional[string]  `json:"brand"`
}

// Validate rejects nulls for fields an Item requires
func (u UpdateItem) Validate() error {
	if u.Name.Null {
		return fmt.Errorf("%w: field %q may not be null", ErrInvalidItem, "name")
	}
	if u.Price.Null {
		return fmt.Errorf("%w: field %q may not be null", ErrInvalidItem, "price")
	}
	return nil
}

// Apply returns the patched item together with the fields whose value changed
func (u UpdateItem) Apply(item Item) (Item, []string) {
	var changed []string

	if u.Name.Set && !u.Name.Null {
		if item.Name != u.Name.Value {
			changed = append(changed, "name")
		}
		item.Name = u.Name.Value
	}
	if u.Price.Set && !u.Price.Null {
		if item.Price != u.Price.Value {
			changed = append(changed, "price")
		}
		item.Price = u.Price.Value
	}
	if u.Brand.Set {
		var next *string
		if !u.Brand.Null {
			brand := u.Brand.Value
			next = &brand
		}
		if !sameBrand(item.Brand, next) {
			changed = append(changed, "brand")
		}
		item.Brand = next
	}

	return item, changed
}

func sameBrand(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
