// Package api hosts the HTTP server, middleware, and REST handlers for the
// crawl job service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /crawl to submit a crawl job.
//   - GET /crawl/{job_id} and /crawl/{job_id}/results for job status and
//     stored records.
package api
