// Package cache maintains the on-disk mirror of one or more release channels.
// It derives the desired set of files from parsed channel manifests, prunes
// everything else under the mirror root, fetches and verifies missing or
// corrupt artefacts with bounded concurrency, and publishes manifests whose
// URLs point at the mirror host together with per-name "latest" aliases.
// Every run re-derives its inputs from the manifests and the current disk
// state, so re-running after a failure converges without rollback.
package cache
