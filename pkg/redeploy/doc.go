/*
Package redeploy watches the directories of deployed modules and triggers
automatic redeployment after a quiesced change.

Two interchangeable engines sit behind the deploy.Redeployer contract:

  - Watcher subscribes each module tree recursively to the OS
    file-change facility; events accumulate into a per-module dirty mark
    and a periodic grace check emits once the tree has been silent for
    one check period.
  - Poller scans each registered tree on a periodic timer, comparing
    modification times against the previous scan; a tree that changed
    and then stayed quiet for a cycle is emitted.

Both collapse write bursts into a single reload and hand every
deployment bound to the changed module to the Reloader as one batch, so
multiple deployments of one module reload together. Engine timers run on
the platform's hashed-wheel timer; a tick that fires after Close is a
no-op.
*/
package redeploy
