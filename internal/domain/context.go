package domain

type ctxKey string

// SessionDIDCtxKey carries the resolved session account through a request.
const SessionDIDCtxKey ctxKey = "sessionDid"
