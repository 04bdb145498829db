package accounting

import (
	"context"

	"github.com/Spok95/fbo-sync/internal/upsert"
)

// лимит строк при поиске документов по ключу
const findByKeyLimit = 100

// DocumentStore — документы МойСклад для upsert.Engine.
type DocumentStore struct {
	c *Client
}

func (c *Client) Documents() *DocumentStore { return &DocumentStore{c: c} }

func (s *DocumentStore) FindByKey(ctx context.Context, kind upsert.Kind, key string) ([]upsert.Existing, error) {
	var res List[DocumentRow]
	if err := s.c.Find(ctx, string(kind), Eq("externalCode", key), findByKeyLimit, &res); err != nil {
		return nil, err
	}
	out := make([]upsert.Existing, 0, len(res.Rows))
	for _, r := range res.Rows {
		// фильтр МойСклад по externalCode точный, но перестрахуемся от пробелов
		if r.ExternalCode != key {
			continue
		}
		out = append(out, upsert.Existing{ID: r.ID, Updated: r.Updated.Time})
	}
	return out, nil
}

func (s *DocumentStore) Create(ctx context.Context, kind upsert.Kind, payload any) (string, error) {
	var created DocumentRow
	if err := s.c.Create(ctx, string(kind), payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *DocumentStore) Update(ctx context.Context, kind upsert.Kind, id string, patch any) error {
	return s.c.Update(ctx, string(kind), id, patch, nil)
}

func (s *DocumentStore) Delete(ctx context.Context, kind upsert.Kind, id string) error {
	return s.c.Delete(ctx, string(kind), id)
}
