// Package pipeline provides orchestration for per-frame exposure
// analysis.
//
// It wires together stages from L1-L5 (tensor decode, mirror fusion,
// subject selection, overlay, metering) into a coherent processing
// flow. The pipeline does not own domain logic — it delegates to layer
// packages and adapters.
package pipeline
