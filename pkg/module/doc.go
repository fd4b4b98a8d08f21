/*
Package module implements module management: the typed manifest view
(mod.json), repository-backed installation, and transitive dependency
resolution.

A module is a directory under the module root containing mod.json, an
optional lib/ directory of jars, and an "includes" list naming further
modules to pull onto the classpath. Resolution walks the include graph
depth-first; each module is visited once, so cycles are harmless. The
outer module's directory and jars precede any include's contributions —
classpath precedence favors the outer module. Two modules contributing a
jar of the same basename produce a warning and both contributors are
recorded.

Missing modules are installed on demand: each configured repository is
tried in order with a bounded wait, and only when all are exhausted does
the install — and with it the resolution — fail.
*/
package module
