package auth

import "context"

type ctxKey string

const (
	subjectContextKey ctxKey = "todoquest.auth.subject"
	sessionContextKey ctxKey = "todoquest.auth.session"
)

func withSubjectContext(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

func withSessionContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

func SubjectFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(subjectContextKey)
	s, ok := v.(string)
	return s, ok
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	v := ctx.Value(sessionContextKey)
	s, ok := v.(Session)
	return s, ok
}
