/*
Package events provides an in-process event broker for deployment and
module lifecycle notifications.

The runtime publishes an event when a deployment starts, fails, or is
undeployed, and when a changed module is reloaded. The redeploy engines
publish nothing themselves; no package publishes module.changed,
module.installed or module.uninstalled. Subscribers receive events over a
buffered channel and are skipped (never blocked on) when their buffer is
full.
*/
package events
