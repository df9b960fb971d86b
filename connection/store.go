package connection

import "context"

// Store persists connection requests and connections.
type Store interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, requestID uint64) (*Request, error)
	UpdateRequest(ctx context.Context, r *Request) error
	// FindPendingRequest returns the pending request for the pair, if any.
	FindPendingRequest(ctx context.Context, vendorShareID, companyShareID string) (*Request, error)
	ListRequests(ctx context.Context, f Filter) ([]*Request, error)

	CreateConnection(ctx context.Context, c *Connection) error
	GetConnection(ctx context.Context, connectionID uint64) (*Connection, error)
	UpdateConnection(ctx context.Context, c *Connection) error
	// FindActiveConnection returns the active connection for the pair, if any.
	FindActiveConnection(ctx context.Context, vendorShareID, companyShareID string) (*Connection, error)
	ListConnections(ctx context.Context, f Filter) ([]*Connection, error)
}
