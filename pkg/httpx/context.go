package httpx

type ctxKey string

const (
	// CtxKeyUserID holds the authenticated user's id once the access guard
	// has run. Rate limiters and loggers read it; handlers should prefer the
	// guard's typed accessor.
	CtxKeyUserID ctxKey = "user_id"
)
