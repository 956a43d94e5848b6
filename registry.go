package red_media_browser

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/radialmonster/red-media-browser-sub000/generic"
)

var (
	ErrDuplicateHandler = errors.New("duplicate handler for domain suffix")
	ErrInvalidHandler   = errors.New("invalid handler")
	ErrUnknownSuffix    = errors.New("no handler registered for domain suffix")
)

// A HandlerFunc rewrites a page-like URL into a direct media URL. Ok carries
// the rewrite; Err means the handler degraded and the caller should keep
// using the input URL.
type HandlerFunc = func(ctx context.Context, rawURL string) generic.Result[string]

// A Handler owns every URL whose host ends with its registered domain
// suffix.
type Handler struct {
	Name    string
	Suffix  string
	Resolve HandlerFunc
}

func (h Handler) WithName(name string) Handler {
	h.Name = name
	return h
}

func (h Handler) WithSuffix(suffix string) Handler {
	h.Suffix = suffix
	return h
}

// A HandlerRegistry maps domain suffixes to handlers. It is append-only:
// populated during startup registration, then read concurrently with no
// locking.
type HandlerRegistry struct {
	handlers   []*Handler
	handlerMap map[string]*Handler
}

// Add registers a Handler. Handler.Suffix and Handler.Resolve must be set,
// and Handler.Suffix must be unique within the HandlerRegistry.
func (r *HandlerRegistry) Add(h Handler) error {
	if r.handlerMap == nil {
		r.handlerMap = make(map[string]*Handler)
	}
	if h.Suffix == "" || h.Resolve == nil {
		return ErrInvalidHandler
	}
	h.Suffix = strings.ToLower(strings.TrimPrefix(h.Suffix, "."))
	if h.Name == "" {
		h.Name = h.Suffix
	}
	if _, ok := r.handlerMap[h.Suffix]; ok {
		return ErrDuplicateHandler
	}
	r.handlerMap[h.Suffix] = &h
	r.handlers = append(r.handlers, r.handlerMap[h.Suffix])
	r.sortBySuffixLength()
	return nil
}

// Create is a shortcut for Add(Handler{Name: ..., Suffix: ..., Resolve: ...}).
func (r *HandlerRegistry) Create(name string, suffix string, f HandlerFunc) error {
	return r.Add(Handler{
		Name:    name,
		Suffix:  suffix,
		Resolve: f,
	})
}

// MustAdd wraps Add but panics if there is an error.
func (r *HandlerRegistry) MustAdd(h Handler) {
	generic.Unwrap_(r.Add(h))
}

// MustCreate wraps Create but panics if there is an error.
func (r *HandlerRegistry) MustCreate(name string, suffix string, f HandlerFunc) {
	generic.Unwrap_(r.Create(name, suffix, f))
}

// List returns the names of registered handlers, most specific suffix first.
func (r *HandlerRegistry) List() []string {
	names := make([]string, 0, len(r.handlers))
	for _, h := range r.handlers {
		names = append(names, h.Name)
	}
	return names
}

// Lookup finds the handler whose suffix is the longest match for host, so a
// subdomain handler beats its parent domain's.
func (r *HandlerRegistry) Lookup(host string) (*Handler, bool) {
	host = strings.ToLower(host)
	for _, h := range r.handlers {
		if hostMatchesSuffix(host, h.Suffix) {
			return h, true
		}
	}
	return nil, false
}

// Dispatch rewrites rawURL through the handler matching its host. The
// boolean reports whether a handler matched and produced a rewrite. A
// failing handler is logged and the URL passes through unchanged; handler
// failure never aborts resolution.
func (r *HandlerRegistry) Dispatch(ctx context.Context, rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL, false
	}
	h, ok := r.Lookup(u.Hostname())
	if !ok {
		return rawURL, false
	}
	resolved, err := h.Resolve(ctx, rawURL).Parts()
	if err != nil {
		zap.S().Named("registry").Debugw("handler degraded, passing URL through",
			"handler", h.Name, "url", rawURL, "error", err)
		return rawURL, false
	}
	if resolved == "" || resolved == rawURL {
		return rawURL, false
	}
	return resolved, true
}

// DispatchWith runs a specific named handler regardless of suffix matching.
func (r *HandlerRegistry) DispatchWith(ctx context.Context, suffix string, rawURL string) (string, error) {
	h, ok := r.handlerMap[strings.ToLower(strings.TrimPrefix(suffix, "."))]
	if !ok {
		return rawURL, ErrUnknownSuffix
	}
	return h.Resolve(ctx, rawURL).Parts()
}

func (r *HandlerRegistry) sortBySuffixLength() {
	sort.SliceStable(r.handlers, func(i, j int) bool {
		return len(r.handlers[i].Suffix) > len(r.handlers[j].Suffix)
	})
}

func hostMatchesSuffix(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

var DefaultRegistry HandlerRegistry
