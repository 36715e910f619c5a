// Package l5meter owns Layer 5 (Metering) of the camera analysis data
// model: classical exposure-value algebra and the three independent
// exposure recommendation modes (scene, zonal, subject-biased).
//
// All three modes share one Engine, which carries the session's
// last-known scene EV100 and aperture. A mode that cannot compute for a
// frame returns an error and leaves the other modes untouched; nothing
// in this package is fatal.
//
// Dependency rule: L5 may depend on L1-L4 and the shared vision package.
// No SQL/database code is allowed in this package.
package l5meter
