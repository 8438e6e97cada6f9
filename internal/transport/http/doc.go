// Package http implements the HTTP transport: the public activation endpoint
// (POST /api/licenses with a closed activate|validate action set), the
// basic-auth gated admin CRUD surface, and the health endpoint.
//
// Business-rule outcomes of the license protocol are rendered as HTTP 200
// with an explicit success/valid flag; HTTP error statuses are reserved for
// malformed requests, missing records on the admin surface, and
// infrastructure failures.
package http
