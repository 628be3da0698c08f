// Package domain models multi-year lake shoreline analysis over satellite
// raster data.
//
// # Data conventions
//
// Water index:
//
//	MNDWI = (green − swir) / (green + swir)
//	computed per pixel from green and shortwave-infrared reflectance.
//	Pixels with a zero denominator or missing reflectance carry the
//	no-data sentinel (NaN) instead of failing the whole grid.
//	A pixel is water iff MNDWI ≥ threshold and the pixel is neither
//	cloud-flagged nor no-data. Raising the threshold never adds water
//	pixels (monotonic inclusion).
//
// Grids:
//
//	All grids in one run share a single projected coordinate reference
//	system with cell sizes in meters. Row 0 is the southernmost row;
//	cell (r, c) covers [Xo+c·cs, Xo+(r+1)·cs) × [Yo+r·cs, Yo+(r+1)·cs).
//	Reprojection and grid alignment are upstream responsibilities: grids
//	entering this package must already align, and mismatches are rejected
//	with ErrExtentMismatch.
//
// Mask cleanup:
//
//	Binary water masks are cleaned before vectorization: a morphological
//	close (dilate then erode with a disk structuring element) repairs
//	narrow sensor striping, then connected components below the minimum
//	area are discarded as noise. Surviving components dissolve into one
//	multi-ring polygon per year; interior rings are islands.
//
// Years:
//
//	Each analysis year yields at most one shoreline polygon. Change
//	detection, trend fitting, and model training operate on the ordered
//	year sequence; stages that need multiple years fail with
//	ErrInsufficientData rather than extrapolating from a single point.
package domain
