package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Spok95/fbo-sync/internal/infra/httpclient"
)

type SoftFailureKind string

const SoftInsufficientStock SoftFailureKind = "insufficient_stock"

// SoftFailure — МойСклад отказал в проведении по предметной причине.
// Документ остаётся непроведённым, но не откатывается.
type SoftFailure struct {
	Kind    SoftFailureKind
	Entity  string
	ID      string
	Message string
}

func (e *SoftFailure) Error() string {
	return fmt.Sprintf("%s %s not applied (%s): %s", e.Entity, e.ID, e.Kind, e.Message)
}

// коды ошибок МойСклад "нет товара на складе"
var insufficientStockCodes = map[int]bool{3007: true}

// фрагменты текста ошибки на случай, если код не пришёл
var insufficientStockFragments = []string{
	"нельзя переместить товар",
	"нельзя отгрузить товар",
	"нет на складе",
}

type apiErrors struct {
	Errors []struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	} `json:"errors"`
}

// Apply проводит документ. Отказ из-за остатков возвращается как *SoftFailure.
func (c *Client) Apply(ctx context.Context, entity, id string) error {
	err := c.Update(ctx, entity, id, map[string]bool{"applicable": true}, nil)
	if err == nil {
		return nil
	}
	if sf := classifyApplyError(entity, id, err); sf != nil {
		return sf
	}
	return err
}

func classifyApplyError(entity, id string, err error) *SoftFailure {
	var rf *httpclient.RequestFailedError
	if !errors.As(err, &rf) || rf.Status < 400 || rf.Status >= 500 {
		return nil
	}
	body := rf.Body

	var parsed apiErrors
	if json.Unmarshal([]byte(body), &parsed) == nil {
		for _, e := range parsed.Errors {
			if insufficientStockCodes[e.Code] {
				return &SoftFailure{Kind: SoftInsufficientStock, Entity: entity, ID: id, Message: e.Error}
			}
		}
	}

	lower := strings.ToLower(body)
	for _, f := range insufficientStockFragments {
		if strings.Contains(lower, f) {
			return &SoftFailure{Kind: SoftInsufficientStock, Entity: entity, ID: id, Message: body}
		}
	}
	return nil
}
