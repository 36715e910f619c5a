// Package l2fuse owns Layer 2 (Fusion) of the camera analysis data model.
//
// Responsibilities: test-time-augmentation fusion of two decode passes
// (original and horizontally mirrored orientation) and spatial majority
// denoising of the fused index map.
//
// Dependency rule: L2 may depend on L1 and the shared vision package,
// but never on L3+.
package l2fuse
