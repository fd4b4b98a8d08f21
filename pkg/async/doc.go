/*
Package async provides the concurrency primitives shared by the deployment
machinery: a one-shot latched Future with an explicit outcome (pending, ok,
failed, timed out), a counting completion handler that aggregates
per-instance results into a single callback, and a worker pool for blocking
actions.

Deploy and undeploy always execute on pool workers and report through
completion callbacks. Run wraps a blocking action in a Future that callers
may await with a timeout; a timed-out wait never invalidates the
underlying action.
*/
package async
