// internal/parser/link.go
package parser

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var (
	backslashes  = regexp.MustCompile(`\\+`)
	wordChar     = regexp.MustCompile(`\w`)
	schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)
	absoluteURL  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://([^/?#]*)(.*)$`)
	percentCode  = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
)

// urlParser applies WHATWG parsing: host case and IDNA, default ports, dot
// segments and percent-encoding of non-ASCII path bytes.
var urlParser = whatwgUrl.NewParser()

var errUnsupportedScheme = errors.New("unsupported scheme")

// ErrorReporter receives canonicalization failures.
type ErrorReporter interface {
	Error(kind, subject string, err error)
}

// Exclusion drops links found on pages of Domain. When Contains is set only
// links containing it are dropped.
type Exclusion struct {
	Domain   string `yaml:"domain"`
	Contains string `yaml:"contains"`
}

// Rules configures a Canonicalizer.
type Rules struct {
	Exclusions     []Exclusion
	Blacklist      Blacklist
	PreserveScheme bool
}

// Link is a canonicalized hyperlink. Key is the dedup identity, Target keeps
// the original scheme and is what gets fetched.
type Link struct {
	Key    string
	Target string
}

// Canonicalizer turns raw hrefs into absolute, comparable URLs.
type Canonicalizer struct {
	rules Rules
	errs  ErrorReporter
}

func NewCanonicalizer(rules Rules, errs ErrorReporter) *Canonicalizer {
	return &Canonicalizer{rules: rules, errs: errs}
}

// Canonicalize returns the dedup key for raw, or "" if the link is rejected.
func (c *Canonicalizer) Canonicalize(base, domain, raw string) string {
	return c.CanonicalizeLink(base, domain, raw).Key
}

// CanonicalizeLink is Canonicalize returning the fetchable target as well.
// A zero Link means reject.
func (c *Canonicalizer) CanonicalizeLink(base, domain, raw string) (link Link) {
	defer func() {
		if r := recover(); r != nil {
			c.report(base, domain, raw, fmt.Errorf("panic: %v", r))
			link = Link{}
		}
	}()

	s := clean(raw)
	if c.excluded(domain, s) {
		return Link{}
	}

	s = stripFragment(s)
	if !wordChar.MatchString(s) {
		return Link{}
	}

	s, err := resolveRelative(base, s)
	if err != nil {
		c.report(base, domain, raw, err)
		return Link{}
	}
	s = absolutize(base, domain, s)

	link, err = c.Normalize(s)
	if err != nil {
		if !errors.Is(err, errUnsupportedScheme) {
			c.report(base, domain, raw, err)
		}
		return Link{}
	}
	if _, hit := c.rules.Blacklist.Match(link.Target); hit {
		return Link{}
	}
	return link
}

// Normalize applies the identity rules (ports, scheme folding, slashes, host
// case, root slash, escapes) to an absolute URL without any filtering.
func (c *Canonicalizer) Normalize(abs string) (Link, error) {
	abs = stripFragment(strings.TrimSpace(abs))
	if p := schemePrefix.FindString(abs); p != "" {
		if scheme := strings.ToLower(strings.TrimSuffix(p, ":")); scheme != "http" && scheme != "https" {
			return Link{}, fmt.Errorf("%w %q", errUnsupportedScheme, scheme)
		}
	}
	parsed, err := urlParser.Parse(abs)
	if err != nil {
		return Link{}, fmt.Errorf("not an absolute url: %q: %w", abs, err)
	}
	u, err := url.Parse(parsed.Href(true))
	if err != nil {
		return Link{}, err
	}
	scheme, host := strings.ToLower(u.Scheme), strings.ToLower(u.Host)
	host = stripDefaultPort(scheme, host)
	if host == "" {
		return Link{}, fmt.Errorf("missing host: %q", abs)
	}

	rest := cleanPath(u.EscapedPath())
	if u.RawQuery != "" || u.ForceQuery {
		rest += "?" + u.RawQuery
	}
	target := upperEscapes(scheme + "://" + host + rest)

	key := target
	if scheme == "https" && !c.rules.PreserveScheme {
		key = "http" + strings.TrimPrefix(target, "https")
	}
	return Link{Key: key, Target: target}, nil
}

func (c *Canonicalizer) excluded(domain, s string) bool {
	for _, rule := range c.rules.Exclusions {
		if !strings.EqualFold(rule.Domain, domain) {
			continue
		}
		if rule.Contains == "" || strings.Contains(s, rule.Contains) {
			return true
		}
	}
	return false
}

func (c *Canonicalizer) report(base, domain, raw string, err error) {
	if c.errs == nil {
		return
	}
	subject := fmt.Sprintf("base_url=%q url=%q domain=%q", base, raw, domain)
	c.errs.Error("canonicalize", subject, err)
}

// Domain returns the lower-cased host (with port, if any) of rawURL.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.ToLower(u.Host), nil
}

// ----- normalization steps ------------------------------------------------

func clean(raw string) string {
	s := raw
	if strings.Contains(s, `\`) {
		s = backslashes.ReplaceAllString(s, "/")
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func stripFragment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}

type linkForm int

const (
	formAbsolute linkForm = iota
	formSchemeRelative
	formRootRelative
	formQuery
	formDot
	formParent
	formBare
)

func classify(s string) linkForm {
	switch {
	case strings.HasPrefix(s, "//"):
		return formSchemeRelative
	case strings.HasPrefix(s, "/"):
		return formRootRelative
	case schemePrefix.MatchString(s):
		return formAbsolute
	case strings.HasPrefix(s, "?"):
		return formQuery
	case strings.HasPrefix(s, "./"):
		return formDot
	case strings.HasPrefix(s, "../"):
		return formParent
	default:
		return formBare
	}
}

// resolveRelative handles the forms that depend on the base URL's path:
// bare names, ./x, ../../x and ?query. Everything else passes through.
func resolveRelative(base, s string) (string, error) {
	switch classify(s) {
	case formAbsolute, formSchemeRelative, formRootRelative:
		return s, nil
	}
	ref, err := urlParser.ParseRef(base, s)
	if err != nil {
		return "", fmt.Errorf("resolve against %q: %w", base, err)
	}
	return ref.Href(false), nil
}

// absolutize prefixes root- and scheme-relative links.
func absolutize(base, domain, s string) string {
	scheme := "http"
	if m := absoluteURL.FindStringSubmatch(base); m != nil {
		scheme = strings.ToLower(m[1])
		if domain == "" {
			domain = strings.ToLower(m[2])
		}
	}
	switch classify(s) {
	case formSchemeRelative:
		return scheme + ":" + s
	case formRootRelative:
		return scheme + "://" + domain + s
	}
	return s
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// cleanPath collapses repeated slashes and removes dot segments. A trailing
// slash survives; an empty path becomes the root.
func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned != "/" && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")) {
		cleaned += "/"
	}
	return cleaned
}

func upperEscapes(s string) string {
	return percentCode.ReplaceAllStringFunc(s, strings.ToUpper)
}
