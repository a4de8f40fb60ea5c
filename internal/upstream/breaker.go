// Package upstream защищает вызовы внешних сервисов (AI, Cloudinary, Stripe)
// предохранителем gobreaker и пишет метрики длительности.
package upstream

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"serotonyl.ru/birdwatch/internal/common"
	"serotonyl.ru/birdwatch/internal/metrics"
)

// Breaker защищает вызовы одного внешнего сервиса: после серии ошибок
// запросы сразу отклоняются, пока сервис не восстановится.
// Повторов нет: ошибка сразу уходит клиенту как ErrUpstream.
type Breaker struct {
	service string
	cb      *gobreaker.CircuitBreaker[any]
}

// Settings: пороги срабатывания.
type Settings struct {
	FailureThreshold uint32        // подряд идущих ошибок до размыкания
	Timeout          time.Duration // сколько держать цепь разомкнутой
	// Expected: штатные ответы сервиса, которые не считаются сбоем
	// (например, «птица не распознана»).
	Expected []error
}

// DefaultSettings: 5 ошибок подряд, 30 секунд паузы.
var DefaultSettings = Settings{FailureThreshold: 5, Timeout: 30 * time.Second}

// With возвращает копию настроек с добавленными штатными ошибками.
func (s Settings) With(expected ...error) Settings {
	s.Expected = append(append([]error(nil), s.Expected...), expected...)
	return s
}

// New создаёт предохранитель для сервиса service.
func New(service string, s Settings) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(service).Set(0)
	return &Breaker{
		service: service,
		cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        service,
			MaxRequests: 1,
			Timeout:     s.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= s.FailureThreshold
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				for _, e := range s.Expected {
					if errors.Is(err, e) {
						return true
					}
				}
				return false
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
				log.WithFields(log.Fields{
					"service": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Состояние предохранителя изменилось")
			},
		}),
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// Service возвращает имя защищаемого сервиса.
func (b *Breaker) Service() string { return b.service }

// Call выполняет fn через предохранитель b, пишет метрику длительности
// и оборачивает ошибки в common.ErrUpstream.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	start := time.Now()
	res, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	metrics.RecordUpstream(b.service, err, time.Since(start))

	var zero T
	if err != nil {
		return zero, common.Upstream(b.service, err)
	}
	out, _ := res.(T)
	return out, nil
}
