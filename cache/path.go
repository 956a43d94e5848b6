// Package cache maps resolved media URLs to deterministic on-disk locations
// under the cache root. Path resolution is pure: the same URL always yields
// the same path, so concurrent tasks agree on destinations without
// coordination.
package cache

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/radialmonster/red-media-browser-sub000/util"
)

var ErrInvalidURL = errors.New("URL has no usable host")

// videoHostSuffix is the redirect-happy video host whose opaque watch/ifr
// URLs need a synthesized filename.
const videoHostSuffix = "redgifs.com"

// maxFilenameLen bounds cache filenames, leaving headroom for a later
// extension correction.
const maxFilenameLen = 200

// ResolvePath computes the cache location for a media URL:
// <root>/<host>/<sanitized filename>. It never touches the filesystem; a
// computed path says nothing about whether the file exists (see Exists).
func ResolvePath(root, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", ErrInvalidURL
	}

	var name string
	switch {
	case hostMatches(host, videoHostSuffix):
		name = videoHostFilename(u, rawURL)
	default:
		name = genericFilename(u, rawURL, host)
	}

	return filepath.Join(root, host, sanitizeFilename(name)), nil
}

// Exists reports whether a previously resolved cache path holds a file.
// Distinct from ResolvePath failing: the path may be perfectly computable
// while the media has never been downloaded.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureParentDir creates the directory that will hold the cache file.
func EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// videoHostFilename synthesizes a stable name for the video host's opaque
// URLs. Real media filenames are kept; watch/ifr page URLs become <id>.mp4;
// anything else hashes the whole URL so lossy inputs still map to one name.
func videoHostFilename(u *url.URL, rawURL string) string {
	if name, err := util.FilenameFromURL(u); err == nil && util.HasMediaExtension(name) {
		return name
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "watch" || seg == "ifr") && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1] + ".mp4"
		}
	}
	sum := sha1.Sum([]byte(rawURL))
	return fmt.Sprintf("%x.mp4", sum)
}

// genericFilename extracts the filename for hosts with no special policy.
// With a recognized media extension the query string is dropped, keeping
// cache hits stable across tracking-parameter variants of the same asset.
// Without one, the query is folded into the name since it may be the only
// thing distinguishing two assets.
func genericFilename(u *url.URL, rawURL, host string) string {
	name, err := util.FilenameFromURL(u)
	if err != nil {
		name = ""
	}
	switch {
	case name != "" && util.HasMediaExtension(name):
		return name
	case name != "":
		if u.RawQuery != "" {
			return name + "?" + u.RawQuery
		}
		return name
	default:
		if ext := trailingExtension(rawURL, host); ext != "" {
			return "downloaded_media." + ext
		}
		return "downloaded_media"
	}
}

// trailingExtension infers an extension for URLs whose path has no filename:
// a recognized media extension at the very end of the raw URL, or the
// provider default, or nothing.
func trailingExtension(rawURL, host string) string {
	if ext := util.ExtensionOf(rawURL); ext != "" && util.HasMediaExtension(rawURL) {
		return ext
	}
	if hostMatches(host, videoHostSuffix) || hostMatches(host, "v.redd.it") {
		return "mp4"
	}
	return ""
}

func hostMatches(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// sanitizeFilename replaces filesystem-unsafe and non-printable characters
// and bounds the name length, preserving the extension when truncating.
func sanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(`<>:"|?*\/&=`, r):
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > maxFilenameLen {
		ext := ""
		if i := strings.LastIndexByte(s, '.'); i >= 0 && len(s)-i <= 8 {
			ext = s[i:]
		}
		s = s[:maxFilenameLen-len(ext)] + ext
	}
	return s
}
