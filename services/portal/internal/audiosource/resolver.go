// Package audiosource classifies chapter links and picks a playback
// strategy. Audio chapters are hosted on third-party document services more
// often than on plain file servers, so a stored link may need rewriting into
// a directly playable URL with an embedded viewer held in reserve.
package audiosource

import (
	"net/url"
	"regexp"
	"strings"
)

// Source is the resolved playback plan for one stored link.
type Source struct {
	// PlayableURL feeds the native audio element directly.
	PlayableURL string `json:"playable_url"`
	// EmbedURL, when present, is the fallback viewer used after direct
	// playback fails on a third-party host.
	EmbedURL string `json:"embed_url,omitempty"`
	// ThirdPartyHost marks links served by a hosted document service
	// rather than a plain file URL.
	ThirdPartyHost bool `json:"third_party_host"`
}

var (
	fileViewPattern = regexp.MustCompile(`/file/d/([^/?#]+)`)
	directDLPattern = regexp.MustCompile(`/uc\?(?:[^#]*&)?id=([^&#]+)`)
)

// Resolve classifies link against the two known hosted-document patterns.
// A "file view" link yields a derived direct-download URL plus a preview
// embed; a "direct download" link passes through as-is with no extra embed;
// anything else is treated as already playable.
func Resolve(link string) Source {
	link = strings.TrimSpace(link)
	if link == "" {
		return Source{}
	}

	if m := fileViewPattern.FindStringSubmatch(link); m != nil {
		base := hostBase(link)
		id := m[1]
		return Source{
			PlayableURL:    base + "/uc?export=download&id=" + id,
			EmbedURL:       base + "/file/d/" + id + "/preview",
			ThirdPartyHost: true,
		}
	}

	if directDLPattern.MatchString(link) {
		return Source{
			PlayableURL:    link,
			ThirdPartyHost: true,
		}
	}

	return Source{PlayableURL: link}
}

// DocumentEmbedURL rewrites a document link for embedded reading: "edit" and
// "view" suffixes become "preview"; links already ending in "preview" pass
// through unchanged.
func DocumentEmbedURL(link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.Contains(link, "/preview") {
		return link
	}
	if strings.HasSuffix(link, "/edit") {
		return strings.TrimSuffix(link, "/edit") + "/preview"
	}
	if strings.HasSuffix(link, "/view") {
		return strings.TrimSuffix(link, "/view") + "/preview"
	}
	return link
}

// hostBase returns scheme://host for link so derived URLs stay on the
// original service.
func hostBase(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
