// Package server provides HTTP routing, middleware, and the translation job API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] with method-qualified patterns.
//
// # Job API
//
// [JobHandler] exposes job submission and inspection over HTTP. Submission is
// asynchronous: the handler persists the job, hands it to a [JobRunner], and
// returns 202 with the job's initial state. Clients poll the status endpoint
// and fetch the translated document once the job reaches a terminal status.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
