package address

import (
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

type Address struct {
	ID           types.ID          `json:"id"`
	Name         string            `json:"name"`
	Phone        string            `json:"phone"`
	AddressLine1 string            `json:"address_line1"`
	AddressLine2 string            `json:"address_line2,omitempty"`
	City         string            `json:"city"`
	State        string            `json:"state"`
	Pincode      string            `json:"pincode"`
	Country      string            `json:"country"`
	AddressType  enums.AddressType `json:"address_type,omitempty"`
	IsDefault    bool              `json:"is_default"`
}

// Default returns the address flagged default, else the first one, else nil.
func Default(list []Address) *Address {
	for i := range list {
		if list[i].IsDefault {
			return &list[i]
		}
	}
	if len(list) > 0 {
		return &list[0]
	}
	return nil
}

// Find returns the address with id, or nil.
func Find(list []Address, id types.ID) *Address {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
