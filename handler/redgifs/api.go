package redgifs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/radialmonster/red-media-browser-sub000/generic"
	"github.com/radialmonster/red-media-browser-sub000/internal/fetch"
)

// API is the multi-tier stream resolver for watch-page URLs. Tiers are tried
// in fixed priority order; the first one that produces a stream URL wins.
type API struct {
	Client *fetch.Client
	// BaseURL is the API origin; override for tests.
	BaseURL string
	// FilesBaseURL serves direct streams; the constructed-guess tier builds
	// URLs against it.
	FilesBaseURL string

	log *zap.SugaredLogger
}

func NewAPI(client *fetch.Client) *API {
	return &API{
		Client:       client,
		BaseURL:      "https://api.redgifs.com",
		FilesBaseURL: "https://files.redgifs.com",
		log:          zap.S().Named("redgifs"),
	}
}

// streamURLs is the urls object shared by the v2 lookup and embed responses.
type streamURLs struct {
	HD string `json:"hd"`
	SD string `json:"sd"`
}

func (u streamURLs) best() string {
	if u.HD != "" {
		return u.HD
	}
	return u.SD
}

type gifResponse struct {
	Gif struct {
		URLs streamURLs `json:"urls"`
	} `json:"gif"`
}

type legacyResponse struct {
	GfyItem struct {
		MP4URL    string `json:"mp4Url"`
		MobileURL string `json:"mobileUrl"`
	} `json:"gfyItem"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// tier is one step of the fallback cascade.
type tier struct {
	name    string
	resolve func(ctx context.Context, id string, auth []fetch.RequestOption) (string, error)
}

func (a *API) tiers() []tier {
	return []tier{
		{"v2", a.lookupV2},
		{"embed", a.lookupEmbed},
		{"legacy", a.lookupLegacy},
		{"constructed", a.constructedGuess},
	}
}

// ResolveVideo turns a watch-page or iframe URL into a direct stream URL.
// None means no tier produced one and the caller should keep the URL it has.
func (a *API) ResolveVideo(ctx context.Context, rawURL string) generic.Option[string] {
	id, ok := AssetID(rawURL)
	if !ok {
		return generic.None[string]()
	}
	var auth []fetch.RequestOption
	if token := a.temporaryToken(ctx); token.IsSome() {
		auth = append(auth, fetch.WithBearerToken(token.Unwrap()))
	}
	var failures error
	for _, t := range a.tiers() {
		streamURL, err := t.resolve(ctx, id, auth)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", t.name, err))
			continue
		}
		if streamURL == "" {
			continue
		}
		if failures != nil {
			a.log.Debugw("stream resolved after degraded tiers",
				"id", id, "tier", t.name, "error", failures)
		}
		return generic.Some(streamURL)
	}
	a.log.Debugw("every tier failed", "id", id, "error", failures)
	return generic.None[string]()
}

// temporaryToken fetches a short-lived bearer token. Best-effort: lookups
// proceed anonymously when the auth endpoint is down.
func (a *API) temporaryToken(ctx context.Context) generic.Option[string] {
	var tr tokenResponse
	if err := a.Client.GetJSON(ctx, a.BaseURL+"/v2/auth/temporary", &tr); err != nil {
		a.log.Debugw("temporary token unavailable, proceeding anonymously", "error", err)
		return generic.None[string]()
	}
	if tr.Token == "" {
		return generic.None[string]()
	}
	return generic.Some(tr.Token)
}

func (a *API) lookupV2(ctx context.Context, id string, auth []fetch.RequestOption) (string, error) {
	return a.lookupGif(ctx, a.BaseURL+apiPath(id), auth)
}

func (a *API) lookupEmbed(ctx context.Context, id string, auth []fetch.RequestOption) (string, error) {
	return a.lookupGif(ctx, a.BaseURL+"/v2/embed/gifs/"+strings.ToLower(id), auth)
}

func (a *API) lookupGif(ctx context.Context, lookupURL string, auth []fetch.RequestOption) (string, error) {
	var gr gifResponse
	if err := a.Client.GetJSON(ctx, lookupURL, &gr, auth...); err != nil {
		return "", err
	}
	if best := gr.Gif.URLs.best(); best != "" {
		return best, nil
	}
	return "", errors.New("response carries no stream urls")
}

func (a *API) lookupLegacy(ctx context.Context, id string, auth []fetch.RequestOption) (string, error) {
	var lr legacyResponse
	if err := a.Client.GetJSON(ctx, a.BaseURL+"/v1/gfycats/"+strings.ToLower(id), &lr, auth...); err != nil {
		return "", err
	}
	if lr.GfyItem.MP4URL != "" {
		return lr.GfyItem.MP4URL, nil
	}
	if lr.GfyItem.MobileURL != "" {
		return lr.GfyItem.MobileURL, nil
	}
	return "", errors.New("response carries no stream urls")
}

// constructedGuess is the last tier: a direct-file URL pattern that may not
// be live. A download-time 404 against it is ordinary, not exceptional.
func (a *API) constructedGuess(_ context.Context, id string, _ []fetch.RequestOption) (string, error) {
	return a.FilesBaseURL + "/" + id + ".mp4", nil
}

// apiPath picks the v2 lookup path shape for an id: purely numeric ids live
// in the image catalogue, named ids in the gif catalogue.
func apiPath(id string) string {
	if isNumericID(id) {
		return "/v2/images/" + id
	}
	return "/v2/gifs/" + strings.ToLower(id)
}

func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AssetID extracts the asset identifier from a watch, iframe or direct URL.
// Case is preserved: constructed fallback URLs are case-sensitive.
func AssetID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", false
	}
	id := segments[len(segments)-1]
	for _, prefix := range []string{"watch", "ifr", "i"} {
		if len(segments) >= 2 && segments[0] == prefix {
			id = segments[1]
			break
		}
	}
	if idx := strings.LastIndexByte(id, '.'); idx > 0 {
		id = id[:idx]
	}
	if !isAssetID(id) {
		return "", false
	}
	return id, true
}

func isAssetID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
