// Package version provides build-time metadata for the directory cache module.
//
// # Overview
//
// Three package-level variables carry version information injected at build
// time via -ldflags, for embedding into logs emitted by
// internal/dircache.New:
//
//	go build -ldflags="\
//	  -X 'github.com/netresearch/dircache/internal/version.Version=v0.3.0' \
//	  -X 'github.com/netresearch/dircache/internal/version.CommitHash=$(git rev-parse --short HEAD)' \
//	  -X 'github.com/netresearch/dircache/internal/version.BuildTimestamp=$(date -u +%Y-%m-%dT%H:%M:%SZ)' \
//	" ./...
//
// Default values ("dev", "n/a", "n/a") apply when no -ldflags are supplied,
// which is the common case since this module has no cmd/ entry point of its
// own — it is imported by a host application.
package version
