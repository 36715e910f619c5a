// Package l1tensor owns Layer 1 (Tensor) of the camera analysis data model.
//
// Responsibilities: decoding raw segmentation model outputs (logit volume,
// label plane, or byte index raster) into a per-pixel class index map with
// per-class aggregate statistics, saliency raster resampling, and the
// session label table.
// Key types: ModelOutput, Decoded, ClassStats, LabelTable, SaliencySampler.
//
// Dependency rule: L1 may depend on the shared vision package, but never
// on L2+. No SQL/database code is allowed in this package.
package l1tensor
