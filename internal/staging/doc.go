// Package staging manages per-run work directories under staging_dir.
//
// Each imscp invocation that extracts a package works inside a run directory
// holding a flock-based lock file, so cleanup never removes a directory a
// live process is still using. The output directory has its own lock so two
// packaging runs cannot interleave writes.
package staging
