package rest

import (
	"strconv"
	"strings"
	"time"

	"partnerfeed/internal/domain"
)

// Money tolerates the backend sending monetary fields as either a JSON
// number or a quoted string. Unparseable values decode to zero rather than
// failing the whole order.
type Money float64

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*m = 0
		return nil
	}
	*m = Money(v)
	return nil
}

// BackendOrder is the canonical DTO for the backend's order representation.
// Every place that receives an order from the wire (REST list responses and
// stream event payloads) decodes into this one shape; normalization happens
// here and nowhere else.
type BackendOrder struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	Customer   struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
	} `json:"customer"`
	Address struct {
		Pickup struct {
			Street   string `json:"street"`
			Landmark string `json:"landmark"`
			City     string `json:"city"`
		} `json:"pickup"`
	} `json:"address"`
	PlacedAt          string        `json:"placedAt"`
	Items             []backendItem `json:"items"`
	Status            string        `json:"status"`
	TotalAmount       Money         `json:"totalAmount"`
	GST               Money         `json:"gst"`
	DeliveryFee       Money         `json:"deliveryFee"`
	ItemsAmount       Money         `json:"itemsAmount"`
	DeliveryPartnerID string        `json:"deliveryPartnerId"`
	Distance          Money         `json:"distance"`
}

type backendItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Price       Money  `json:"price"`
	LaundryItem *struct {
		Name  string `json:"name"`
		Price Money  `json:"price"`
	} `json:"laundryItem"`
}

// ToOrder maps the backend representation onto the domain entity.
func (bo *BackendOrder) ToOrder() domain.Order {
	status := domain.OrderStatus(bo.Status)
	if !status.IsValid() {
		status = domain.StatusPending
	}

	o := domain.Order{
		ID:                bo.ID,
		CustomerID:        bo.CustomerID,
		CustomerName:      bo.Customer.Name,
		PhoneNumber:       bo.Customer.Mobile,
		PickupAddress:     joinAddress(bo.Address.Pickup.Street, bo.Address.Pickup.Landmark, bo.Address.Pickup.City),
		Status:            status,
		TotalAmount:       float64(bo.TotalAmount),
		GST:               float64(bo.GST),
		DeliveryFee:       float64(bo.DeliveryFee),
		ItemsAmount:       float64(bo.ItemsAmount),
		DeliveryPartnerID: bo.DeliveryPartnerID,
		Distance:          float64(bo.Distance),
	}

	if bo.PlacedAt != "" {
		if ts, err := time.Parse(time.RFC3339, bo.PlacedAt); err == nil {
			o.PlacedAt = ts
		}
	}

	o.Items = make([]domain.OrderItem, 0, len(bo.Items))
	for _, it := range bo.Items {
		item := domain.OrderItem{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    float64(it.Price),
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if it.LaundryItem != nil {
			if it.LaundryItem.Name != "" {
				item.Name = it.LaundryItem.Name
			}
			if item.Price == 0 {
				item.Price = float64(it.LaundryItem.Price)
			}
		}
		o.Items = append(o.Items, item)
	}
	return o
}

func joinAddress(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
