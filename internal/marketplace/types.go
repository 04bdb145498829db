package marketplace

import "github.com/shopspring/decimal"

type listFilter struct {
	States []int `json:"states"`
}

type listRequest struct {
	Filter  listFilter `json:"filter"`
	LastID  string     `json:"last_id"`
	Limit   int        `json:"limit"`
	SortBy  int        `json:"sort_by"`
	SortDir string     `json:"sort_dir"`
}

type listResponse struct {
	OrderIDs []int64 `json:"order_ids"`
	LastID   string  `json:"last_id"`
	HasNext  *bool   `json:"has_next"`
}

type getRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

type getResponse struct {
	Orders []orderDTO `json:"orders"`
}

type orderDTO struct {
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	State       string        `json:"state"`
	Timeslot    *timeslotDTO  `json:"timeslot"`
	Supplies    []supplyDTO   `json:"supplies"`
	DropOff     *warehouseDTO `json:"drop_off_warehouse"`
}

type timeslotDTO struct {
	Timeslot *struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"timeslot"`
}

type supplyDTO struct {
	BundleID         string        `json:"bundle_id"`
	StorageWarehouse *warehouseDTO `json:"storage_warehouse"`
}

type warehouseDTO struct {
	Name string `json:"name"`
}

type bundleRequest struct {
	BundleIDs []string `json:"bundle_ids"`
	Limit     int      `json:"limit"`
	LastID    string   `json:"last_id,omitempty"`
}

type bundleResponse struct {
	Items   []bundleItemDTO `json:"items"`
	HasNext bool            `json:"has_next"`
	LastID  string          `json:"last_id"`
}

type bundleItemDTO struct {
	OfferID  string          `json:"offer_id"`
	SKU      int64           `json:"sku"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}
