/*
Package platform assembles the runtime: hashed-wheel timer, event loop,
blocking-action worker pool, module manager, verticle runtime, redeploy
engine and event broker, behind a single Platform facade.

The platform carries no global state. Verticle factory constructors are
registered against the factory registry and typically capture the
Platform handle in a closure; each verticle then reaches the platform
through its factory or the deployment-scoped Container, which parents
nested deploys under the issuing deployment automatically.

User-level timers (SetTimer, SetPeriodic, CancelTimer) ride the same
wheel that drives redeploy scanning.
*/
package platform
