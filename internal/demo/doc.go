// Package demo declares a few small example types that exercise the tracing
// engine: Random (a type-level operation), Dice (an instance operation that
// calls Random) and Cup (an instance operation that creates tracked dice).
package demo
