// Package main hosts the detlab CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the detection-model lifecycle: dataset
// fetching, video downscaling, frame extraction, training, export, and
// smoke-test inference, plus configuration scaffolding, environment status,
// and invocation history. It centralizes configuration resolution, logger
// construction, and GPU-lock handling so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
