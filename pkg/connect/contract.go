package connect

import "context"

// Service is the minimal request/response contract satisfied by connectors,
// allowing composition into larger pipelines (TLS wrapping, pooling) that
// only know how to call a service. A Service is always ready: calls are
// never queued and any number may run concurrently.
type Service[Req, Resp any] interface {
	Call(ctx context.Context, req Req) (Resp, error)
}

// ServiceFactory produces ready-to-use Service instances on demand.
// Factories are stateless; services returned by separate calls share no
// observable state.
type ServiceFactory[Req, Resp any] interface {
	NewService() Service[Req, Resp]
}
