/*
Package metrics provides Prometheus metrics for Burrow.

Metrics cover the deployment tree (active deployments and verticle
instances), module resolution and installation, the hashed-wheel timer
(scheduled/fired/cancelled timeouts), and the redeployer. All collectors
are registered at package init; Handler exposes them over HTTP.
*/
package metrics
