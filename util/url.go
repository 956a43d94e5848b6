package util

import (
	"errors"
	"mime"
	"net/url"
	"strings"

	"github.com/radialmonster/red-media-browser-sub000/generic"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// Extensions the cache treats as directly playable/displayable media, without
// the leading dot. Hosts lie about content types, so these are judged from
// the URL path only; the download executor reconciles against the actual
// response later.
var (
	ImageExtensions = generic.NewSet("jpg", "jpeg", "png", "gif", "webp", "bmp")
	VideoExtensions = generic.NewSet("mp4", "webm", "m4v", "mov", "mkv", "flv")
)

// FilenameFromURL extracts the last path segment of a URL as a filename.
func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// ExtensionOf returns the lowercased extension of a path or filename without
// the leading dot, or "" if there is none.
func ExtensionOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	ext := name[idx+1:]
	if strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return strings.ToLower(ext)
}

// HasImageExtension reports whether the path/filename ends in a recognized
// image extension.
func HasImageExtension(name string) bool {
	return ImageExtensions.Contains(ExtensionOf(name))
}

// HasVideoExtension reports whether the path/filename ends in a recognized
// video extension.
func HasVideoExtension(name string) bool {
	return VideoExtensions.Contains(ExtensionOf(name))
}

// HasMediaExtension reports whether the path/filename ends in any recognized
// media extension.
func HasMediaExtension(name string) bool {
	ext := ExtensionOf(name)
	return ImageExtensions.Contains(ext) || VideoExtensions.Contains(ext)
}

// WithoutQuery strips the query string and fragment from a URL, leaving
// scheme, host and path intact. Malformed URLs are returned unchanged.
func WithoutQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Kind is the coarse media classification used to reconcile a URL's apparent
// type against the observed response content type.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindHTML
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindHTML:
		return "html"
	default:
		return "unknown"
	}
}

// KindFromExtension classifies a path/filename by its extension.
func KindFromExtension(name string) Kind {
	ext := ExtensionOf(name)
	switch {
	case ImageExtensions.Contains(ext):
		return KindImage
	case VideoExtensions.Contains(ext):
		return KindVideo
	default:
		return KindUnknown
	}
}

// KindFromContentType classifies a Content-Type header value.
func KindFromContentType(contentType string) Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindUnknown
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return KindHTML
	default:
		return KindUnknown
	}
}

// ExtensionForContentType returns the canonical file extension (without dot)
// for a media Content-Type, or "" when no better name is known.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/quicktime":
		return "mov"
	default:
		// One subtype, many parameters: image/x-foo → foo is good enough for
		// a cache filename.
		if i := strings.IndexByte(mediaType, '/'); i >= 0 {
			sub := mediaType[i+1:]
			if !strings.ContainsAny(sub, ".+-") && sub != "" {
				return sub
			}
		}
		return ""
	}
}
