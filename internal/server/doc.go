// Package server exposes the importer over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("POST /imports") internally.
//
// # Identity
//
// [RequireUser] reads the user id from the X-User-ID header and rejects requests without one.
// Handlers read it back with identity.FromContext and pass it explicitly into the import engine.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which lists the routes they serve,
// allowing handlers to encapsulate route definitions within the implementation.
// [API] is the importer's handler: statement preview, import, job and transaction listing.
package server
