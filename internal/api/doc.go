// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - POST /api/extract and /api/extract-fonts crawl a page and return its
//     fonts in the compact and detailed shapes.
//   - POST /api/match ranks open alternatives for one family.
//   - GET /api/font streams an upstream font behind a signed token.
//   - GET /healthz and /readyz for probes, /metrics for Prometheus.
package api
