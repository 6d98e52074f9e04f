package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidItem is wrapped by every validation failure in this package
var ErrInvalidItem = errors.New("invalid item")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Item represents a sellable inventory entry
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Brand *string `json:"brand"`
}

// String renders the item as it appears in delete confirmations
func (i Item) String() string {
	return fmt.Sprintf("Item[name:%s, price:%s, brand:%s]", i.Name, FormatPrice(i.Price), i.BrandOrNone())
}

// BrandOrNone returns the brand or "None" when absent
func (i Item) BrandOrNone() string {
	if i.Brand == nil {
		return "None"
	}
	return *i.Brand
}

// FormatPrice uses the shortest decimal form that round-trips and always
// keeps a fractional part, so 4 renders as 4.0
func FormatPrice(price float64) string {
	s := strconv.FormatFloat(price, 'f', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}

// NameKey is the case-folded form used for name lookups
func NameKey(name string) string {
	return strings.ToLower(name)
}

// NewItem builds an Item with an optional brand
func NewItem(name string, price float64, brand string) Item {
	item := Item{Name: name, Price: price}
	if brand != "" {
		item.Brand = &brand
	}
	return item
}

// ItemInput is the request body for creating an item.
// Pointer fields let validation tell a missing key from a zero value.
type ItemInput struct {
	Name  *string  `json:"name" validate:"required"`
	Price *float64 `json:"price" validate:"required"`
	Brand *string  `json:"brand"`
}

// Item validates the input and converts it into an Item
func (in ItemInput) Item() (Item, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Item{}, fmt.Errorf("%w: field %q is %s", ErrInvalidItem, jsonField(verrs[0].Field()), verrs[0].Tag())
		}
		return Item{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return Item{Name: *in.Name, Price: *in.Price, Brand: in.Brand}, nil
}

func jsonField(field string) string {
	switch field {
	case "Name":
		return "name"
	case "Price":
		return "price"
	case "Brand":
		return "brand"
	}
	return field
}

// SeedInventory returns the entries every fresh store starts with
func SeedInventory() map[int]Item {
	return map[int]Item{
		1: NewItem("Milk", 3.99, "Regular"),
		2: NewItem("Sugar", 1.99, "Fine-Sugar"),
	}
}
