// internal/models/order.go
package models

// OrderQuery is the raw order context supplied by a caller. Labels may be
// English or Spanish; Language only affects display labels.
type OrderQuery struct {
	StoreCategory          string `json:"storeCategory"`
	OrderDay               string `json:"orderDay"`
	OrderHour              int    `json:"orderHour"`
	TotalOnshiftCouriers   int    `json:"totalOnshiftCouriers"`
	TotalBusyCouriers      int    `json:"totalBusyCouriers"`
	TotalOutstandingOrders int    `json:"totalOutstandingOrders"`
	Language               string `json:"language,omitempty"`
}
