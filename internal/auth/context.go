package auth

import "context"

// Principal: аутентифицированный пользователь запроса.
type Principal struct {
	UserID int64
	Email  string
	Staff  bool
}

type principalKey struct{}

// WithPrincipal кладёт пользователя в контекст (вызывается middleware).
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext возвращает пользователя, если запрос аутентифицирован.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserID возвращает id текущего пользователя или 0.
// Хендлеры за middleware.Authenticate могут полагаться на ненулевое значение.
func UserID(ctx context.Context) int64 {
	p, _ := FromContext(ctx)
	return p.UserID
}
