/*
Package deploy implements the module deployment core: the deployment
tree, the verticle runtime and the contracts user code plugs into.

A deploy request resolves the module's dependency graph, registers a
Deployment in the tree (parented under the deployment that issued the
request) and launches N verticle instances. Worker deployments share a
single factory so instances can share cached state; non-worker
deployments get an isolated factory per instance. The done handler fires
exactly once, after the last instance reported, succeeding only if every
instance started; a partial failure undeploys what was created.

Undeploy is depth-first: all descendants leave the tree, and have their
instance stops posted, before the parent does; the posted stops then run
concurrently, each instance running its close hooks before its logger is
dropped. Modules that opt into auto-redeploy are registered
with the redeploy engine on deploy and unregistered on undeploy; the
engine hands changed deployments back to Runtime.Reload as a batch.

All structural work runs on the blocking-action worker pool. The
exported deploy and undeploy methods only submit; nothing in this
package blocks an event-loop goroutine.
*/
package deploy
