// Package cli provides the interactive listbuffer client.
//
// It wires configuration, the local store, the gRPC backend and the buffer,
// then runs a REPL over the lists declared in the schema file. Entities are
// edited as name=value lines and kept as map[string]any documents. A
// background Syncer drains the outbox while the server answers.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
