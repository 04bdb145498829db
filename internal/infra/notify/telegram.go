package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/fbo-sync/internal/audit"
)

// Notifier сообщает итог прогона по кабинету.
type Notifier interface {
	RunFinished(ctx context.Context, cabinet string, s audit.Summary, runErr error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram шлёт итоги в админский чат.
type Telegram struct {
	api    sender
	chatID int64
	log    *slog.Logger
	// о пустых прогонах (ни одного изменения) не пишем
	quiet bool
}

func NewTelegram(token string, chatID int64, quiet bool, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log, quiet: quiet}, nil
}

func (t *Telegram) RunFinished(_ context.Context, cabinet string, s audit.Summary, runErr error) {
	if t.quiet && runErr == nil && s.Failed == 0 && !hasChanges(s) {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, formatSummary(cabinet, s, runErr))
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send failed", "err", err)
	}
}

// SendReport отправляет xlsx-отчёт документом в админский чат.
func (t *Telegram) SendReport(_ context.Context, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

func hasChanges(s audit.Summary) bool {
	for _, m := range []map[audit.Stage]int{s.Created, s.Updated} {
		for _, n := range m {
			if n > 0 {
				return true
			}
		}
	}
	return s.DuplicatesDeleted > 0 || s.LeftUnapplied > 0
}

func formatSummary(cabinet string, s audit.Summary, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FBO → МойСклад, кабинет %s\n", cabinet)
	if runErr != nil {
		fmt.Fprintf(&b, "❌ Прогон прерван: %v\n", runErr)
	}
	fmt.Fprintf(&b, "Заявок: %d, обработано: %d, пропущено: %d, ошибок: %d\n", s.Orders, s.Done, s.Skipped, s.Failed)
	fmt.Fprintf(&b, "Заказы: +%d / ~%d\n", s.Created[audit.StageSalesOrder], s.Updated[audit.StageSalesOrder])
	fmt.Fprintf(&b, "Перемещения: +%d / ~%d\n", s.Created[audit.StageTransfer], s.Updated[audit.StageTransfer])
	fmt.Fprintf(&b, "Отгрузки: +%d\n", s.Created[audit.StageDispatch])
	if s.LeftUnapplied > 0 {
		fmt.Fprintf(&b, "⚠️ Не проведено из-за остатков: %d\n", s.LeftUnapplied)
	}
	if s.DuplicatesDeleted > 0 {
		fmt.Fprintf(&b, "Удалено дублей: %d\n", s.DuplicatesDeleted)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Log — запасной вариант: итог только в лог.
type Log struct{ L *slog.Logger }

func (l Log) RunFinished(_ context.Context, cabinet string, s audit.Summary, runErr error) {
	if runErr != nil {
		l.L.Error("run finished with error", "cabinet", cabinet, "summary", s.String(), "err", runErr)
		return
	}
	l.L.Info("run finished", "cabinet", cabinet, "summary", s.String())
}

// Multi оповещает всех по очереди.
type Multi []Notifier

func (m Multi) RunFinished(ctx context.Context, cabinet string, s audit.Summary, runErr error) {
	for _, n := range m {
		if n != nil {
			n.RunFinished(ctx, cabinet, s, runErr)
		}
	}
}
