// Package archive acquires, verifies, unpacks and produces package archives.
//
// # Archive kinds
//
// Every package version has up to two archives:
//   - binary: <name>-<version>-binary.tar.gz published on the binary host,
//     next to <name>-<version>-binary.sha1 holding its SHA1 digest
//   - source: the upstream archive named by the package definition, with
//     the SHA1 digest recorded in the definition
//
// # Cache model
//
// Archives live in a local cache directory under their canonical names.
// Downloads are written to a temporary file first, verified, and only then
// renamed into the cache, so a cached archive is always one that passed
// verification. A digest mismatch removes the temporary file and returns a
// *VerificationFailedError; it is never retried.
//
// When an OpenPGP keyring is configured, binary archives must also carry a
// valid detached signature (<binary-url>.sig).
//
// # Components
//
//   - Fetcher / Target: binary availability probe and archive acquisition
//   - Downloader: HTTP GET with retry logic and HEAD existence probes
//   - HashFile / VerifyFile: SHA1 integrity checks
//   - Extractor: tar family, zip, and pass-through extraction
//   - Packer: produces binary archives from installed prefixes
package archive
