package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// EntityType is the kind of record a link points at.
type EntityType string

const (
	EntityWorkOrder EntityType = "work_order"
	EntityApproval  EntityType = "approval"
)

// ErrUnknownEntity is returned for an EntityType with no path template.
var ErrUnknownEntity = errors.New("unknown entity type")

const (
	DefaultWebBaseURL     = "https://app.fixzit.co"
	DefaultDeepLinkScheme = "fixzit://"
)

// pathTemplates maps an entity type to its web path prefix and deep link path prefix.
var pathTemplates = map[EntityType]struct{ web, deep string }{
	EntityWorkOrder: {web: "/fm/work-orders", deep: "work-orders"},
	EntityApproval:  {web: "/fm/approvals", deep: "approvals"},
}

// Config configures a Builder.
type Config struct {
	WebBaseURL     string
	DeepLinkScheme string
	TrustedHosts   []string
}

// Links is the pair of URLs produced for one entity.
type Links struct {
	WebURL   string
	DeepLink string
}

// Builder resolves entity references to links. It is safe for concurrent use.
type Builder struct {
	webBase    string
	deepPrefix string
	sanitizer  *Sanitizer
}

// NewBuilder returns a Builder. Empty fields fall back to the defaults, and the
// host of WebBaseURL is always trusted by the builder's sanitizer.
func NewBuilder(cfg Config) *Builder {
	base := strings.TrimRight(strings.TrimSpace(cfg.WebBaseURL), "/")
	if base == "" {
		base = DefaultWebBaseURL
	}
	scheme := cfg.DeepLinkScheme
	if strings.TrimSpace(scheme) == "" {
		scheme = DefaultDeepLinkScheme
	}

	trusted := append([]string(nil), cfg.TrustedHosts...)
	if u, err := url.Parse(base); err == nil && u.Hostname() != "" {
		trusted = append(trusted, u.Hostname())
	}

	return &Builder{
		webBase:    base,
		deepPrefix: deepLinkPrefix(scheme),
		sanitizer:  NewSanitizer(trusted),
	}
}

// Build returns the web URL and deep link for an entity. subPath is optional and
// is appended to both links after the id.
func (b *Builder) Build(et EntityType, id, subPath string) (Links, error) {
	if strings.TrimSpace(id) == "" {
		return Links{}, entity.ErrMissingID
	}
	tmpl, ok := pathTemplates[et]
	if !ok {
		return Links{}, fmt.Errorf("%w: %q", ErrUnknownEntity, et)
	}

	escaped := url.PathEscape(id)
	webPath := tmpl.web + "/" + escaped
	deepPath := tmpl.deep + "/" + escaped
	if sub := strings.Trim(strings.TrimSpace(subPath), "/"); sub != "" {
		webPath += "/" + sub
		deepPath += "/" + sub
	}

	return Links{
		WebURL:   b.webBase + webPath,
		DeepLink: b.deepPrefix + deepPath,
	}, nil
}

// Sanitizer returns the sanitizer bound to the builder's trusted hosts.
func (b *Builder) Sanitizer() *Sanitizer {
	return b.sanitizer
}

// deepLinkPrefix normalizes a scheme to the string deep link paths are appended to.
//
//	"fixzit"        -> "fixzit://"
//	"fixzit://"     -> "fixzit://"
//	"fixzit://app"  -> "fixzit://app/"
//	"fixzit://app/" -> "fixzit://app/"
func deepLinkPrefix(scheme string) string {
	scheme = strings.TrimSpace(scheme)
	name, host, found := strings.Cut(scheme, "://")
	if !found {
		name = strings.TrimSuffix(scheme, ":")
	}
	host = strings.Trim(host, "/")
	if host == "" {
		return name + "://"
	}
	return name + "://" + host + "/"
}
