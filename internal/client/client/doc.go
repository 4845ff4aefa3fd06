// Package client contains the client-side building blocks of the buffer
// that talk to the outside world.
//
// # Overview
//
// The package provides:
//  1. The RemoteTable contract the sync engine replays commands against, and
//     the Client interface that adds Login, Ping and Close.
//  2. A gRPC implementation (GRPCClient) over the Lists service in
//     internal/rpc. An interceptor attaches the access token and logs in
//     again when the server reports the token as expired.
//  3. The local store provider (Store): an SQLite database with embedded
//     goose migrations and factories for the repositories bound to either
//     the database or an open transaction.
//
// # Error Handling
//
// gRPC status codes are mapped back to the sentinels in internal/common
// (ErrItemNotFound, ErrorUnauthorized, ErrNotSupported, ErrInvalidDocument)
// and to ErrUnavailable for transport failures.
package client
