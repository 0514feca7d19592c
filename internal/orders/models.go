package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
)

type Contact struct {
	Email        string
	Phone        string
	Address      string
	DeliveryType string
	DeliveryTime string
}

type Order struct {
	ID          int64
	Reference   string
	UserID      int64
	Amount      int64 // minor units
	Currency    string
	Status      Status
	PaymentID   *int64
	Customer    Customer
	Contact     Contact
	CheckoutURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image is the receipt snapshot of a variant image.
type Image struct {
	UUID  string `json:"image_uuid"`
	Color string `json:"color,omitempty"`
	URL   string `json:"url,omitempty"`
}

type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Color       string // empty means the primary variant
	Quantity    int
	UnitPrice   decimal.Decimal
	ProductName string
	Image       *Image
	CreatedAt   time.Time
}

func (it Item) Variant() inventory.Variant {
	return inventory.Variant{Color: it.Color}
}

// NewOrder is what checkout persists: the pending order and its snapshots.
type NewOrder struct {
	Reference string
	UserID    int64
	Amount    int64
	Currency  string
	Customer  Customer
	Contact   Contact
	Items     []NewItem
}

type NewItem struct {
	ProductID   int64
	Color       string
	Quantity    int
	UnitPrice   decimal.Decimal
	ProductName string
	Image       *Image
}

type OrderWithItems struct {
	Order
	Items []Item
}
