// Package engine holds the badge's game context: it composes the sensor
// sampler, trigger evaluator, quest engine, radio and display, and drives
// them with a fixed-period game loop.
package engine
