package nearby

import "context"

// Notifier сообщает модераторам о новых местах и наблюдениях.
// Реализации не должны блокировать запрос и не возвращают ошибок:
// сбой оповещения не отменяет уже сохранённые данные.
type Notifier interface {
	SpotCreated(ctx context.Context, s *Spot)
	SightingReported(ctx context.Context, g *Sighting)
}

// NopNotifier ничего не отправляет (оповещения выключены).
type NopNotifier struct{}

func (NopNotifier) SpotCreated(context.Context, *Spot)          {}
func (NopNotifier) SightingReported(context.Context, *Sighting) {}
