package supply

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalCodePrefix — постоянный префикс ключа идемпотентности в externalCode документов МойСклад.
const ExternalCodePrefix = "OZON_FBO:"

// ExternalCode строит ключ идемпотентности заявки по её номеру.
func ExternalCode(orderNumber string) string {
	return ExternalCodePrefix + strings.TrimSpace(orderNumber)
}

type State string

const (
	StateDraft                 State = "draft"                   // заполнение данных
	StateReady                 State = "ready"                   // готово к отгрузке
	StateAcceptedAtOrigin      State = "accepted_at_origin"      // принято на точке отгрузки
	StateInTransit             State = "in_transit"              // в пути
	StateAcceptedAtDestination State = "accepted_at_destination" // приёмка на складе Ozon
	StateCompleted             State = "completed"
	StateCancelled             State = "cancelled"
	StateUnknown               State = "unknown"
)

// состояния Ozon API v3 (строковые) -> наши
var wireStates = map[string]State{
	"DATA_FILLING":                    StateDraft,
	"READY_TO_SUPPLY":                 StateReady,
	"ACCEPTED_AT_SUPPLY_WAREHOUSE":    StateAcceptedAtOrigin,
	"IN_TRANSIT":                      StateInTransit,
	"ACCEPTANCE_AT_STORAGE_WAREHOUSE": StateAcceptedAtDestination,
	"REPORTS_CONFIRMATION_AWAITING":   StateAcceptedAtDestination,
	"REPORT_REJECTED":                 StateAcceptedAtDestination,
	"COMPLETED":                       StateCompleted,
	"CANCELLED":                       StateCancelled,
	"REJECTED_AT_SUPPLY_WAREHOUSE":    StateCancelled,
	"OVERDUE":                         StateCancelled,
}

// числовые коды фильтра списка заявок
var filterCodes = map[State]int{
	StateReady:                 2,
	StateDraft:                 3,
	StateAcceptedAtOrigin:      4,
	StateInTransit:             5,
	StateAcceptedAtDestination: 6,
	StateCompleted:             8,
	StateCancelled:             9,
}

// ParseWireState переводит состояние из ответа Ozon. Неизвестные строки -> StateUnknown.
func ParseWireState(s string) State {
	if st, ok := wireStates[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st
	}
	return StateUnknown
}

// ParseState разбирает имя состояния из конфигурации или флага CLI.
func ParseState(s string) (State, bool) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	_, ok := filterCodes[st]
	return st, ok
}

// FilterCode возвращает числовой код для фильтра списка заявок.
func (s State) FilterCode() (int, bool) {
	c, ok := filterCodes[s]
	return c, ok
}

// DispatchEligible — товар физически уехал или уже принят: можно создавать отгрузку.
func (s State) DispatchEligible() bool {
	switch s {
	case StateAcceptedAtOrigin, StateInTransit, StateAcceptedAtDestination, StateCompleted:
		return true
	}
	return false
}

type Order struct {
	ID        int64
	Number    string
	State     State
	Timeslot  *time.Time // начало планового слота отгрузки
	Warehouse string     // склад назначения Ozon
	BundleIDs []string
}

func (o Order) ExternalCode() string { return ExternalCode(o.Number) }

type BundleItem struct {
	OfferID  string
	Quantity decimal.Decimal
}
