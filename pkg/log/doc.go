/*
Package log provides structured logging for Burrow on top of zerolog.

Setup configures the root logger once at start-up (level, JSON or
console output); WithComponent derives subsystem-tagged children from
it. Verticle instances are special: each gets a logger registered under
its holder's logger name via Instance, tagged with deployment and
instance index, and the runtime Drops it again when the instance is
undeployed — close hooks run first, then the logger goes away.
*/
package log
