package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"cfsub/internal/models"
	"cfsub/internal/utils"
)

type Scheme string

const (
	SchemeVmess  Scheme = "vmess"
	SchemeVless  Scheme = "vless"
	SchemeTrojan Scheme = "trojan"
	SchemeOther  Scheme = "other"
)

var errNoHost = errors.New("link has no host")

// ProxyNode is one subscription entry. Only vmess, vless and trojan nodes can be
// re-pointed at a candidate; anything else is emitted as Raw.
type ProxyNode struct {
	Scheme Scheme
	Raw    string

	vmess map[string]any
	uri   *rawURI
}

// rawURI keeps the original bytes of every component it does not rewrite.
type rawURI struct {
	scheme   string
	userinfo string // without the trailing @
	hostname string
	port     string
	path     string
	rawQuery string
	name     string // decoded fragment
}

// ParseV2Link parses vmess:// (base64 JSON), vless:// and trojan:// links.
// Other schemes yield a SchemeOther node and no error.
func ParseV2Link(link string) (ProxyNode, error) {
	link = strings.TrimSpace(link)
	scheme, _, ok := strings.Cut(link, "://")
	if !ok {
		return ProxyNode{Scheme: SchemeOther, Raw: link}, nil
	}
	switch strings.ToLower(scheme) {
	case "vmess":
		cfg, err := decodeVmess(link[len(scheme)+3:])
		if err != nil {
			return ProxyNode{Scheme: SchemeVmess, Raw: link}, err
		}
		return ProxyNode{Scheme: SchemeVmess, Raw: link, vmess: cfg}, nil
	case "vless", "trojan":
		s := Scheme(strings.ToLower(scheme))
		u, err := parseRawURI(link)
		if err != nil {
			return ProxyNode{Scheme: s, Raw: link}, err
		}
		return ProxyNode{Scheme: s, Raw: link, uri: u}, nil
	default:
		return ProxyNode{Scheme: SchemeOther, Raw: link}, nil
	}
}

// Rewritable reports whether the node parsed well enough to be expanded per candidate.
func (n ProxyNode) Rewritable() bool {
	return n.vmess != nil || n.uri != nil
}

// Rewrite points a copy of the node at c. The original host becomes the TLS/host-header
// fallback and the display name gets a "[CF-<tag>]" suffix. Non-rewritable nodes return Raw.
func (n ProxyNode) Rewrite(c models.Candidate) string {
	switch {
	case n.vmess != nil:
		out, err := rewriteVmess(n.vmess, c)
		if err != nil {
			return n.Raw
		}
		return out
	case n.uri != nil:
		extra := "host"
		if n.Scheme == SchemeTrojan {
			extra = "peer"
		}
		return n.uri.rewrite(c, "sni", extra)
	default:
		return n.Raw
	}
}

func decodeVmess(payload string) (map[string]any, error) {
	raw, err := utils.DecodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("vmess payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cfg map[string]any
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("vmess json: %w", err)
	}
	if cfg == nil {
		return nil, errors.New("vmess json: not an object")
	}
	return cfg, nil
}

func rewriteVmess(orig map[string]any, c models.Candidate) (string, error) {
	cfg := make(map[string]any, len(orig)+2)
	for k, v := range orig {
		cfg[k] = v
	}
	if add, ok := orig["add"]; ok && !isBlank(add) {
		for _, key := range []string{"sni", "host"} {
			if isBlank(cfg[key]) {
				cfg[key] = add
			}
		}
	}
	cfg["add"] = c.Domain
	cfg["ps"] = taggedName(stringValue(orig["ps"]), c)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return "", err
	}
	return "vmess://" + utils.EncodeBase64(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func parseRawURI(link string) (*rawURI, error) {
	// validate with net/url, but rebuild from the original bytes
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, errNoHost
	}

	scheme, rest, _ := strings.Cut(link, "://")
	rest, frag, _ := strings.Cut(rest, "#")
	rest, query, _ := strings.Cut(rest, "?")
	authority, path := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority, path = rest[:i], rest[i:]
	}
	userinfo := ""
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		userinfo = authority[:i]
	}

	name, err := url.PathUnescape(frag)
	if err != nil {
		name = frag
	}
	return &rawURI{
		scheme:   scheme,
		userinfo: userinfo,
		hostname: u.Hostname(),
		port:     u.Port(),
		path:     path,
		rawQuery: query,
		name:     name,
	}, nil
}

func (r *rawURI) rewrite(c models.Candidate, fallbackKeys ...string) string {
	present, _ := url.ParseQuery(r.rawQuery)
	query := r.rawQuery
	for _, key := range fallbackKeys {
		if _, ok := present[key]; ok {
			continue
		}
		if query != "" {
			query += "&"
		}
		query += key + "=" + pctEncode(r.hostname)
	}

	var b strings.Builder
	b.WriteString(r.scheme)
	b.WriteString("://")
	if r.userinfo != "" {
		b.WriteString(r.userinfo)
		b.WriteByte('@')
	}
	if r.port != "" {
		b.WriteString(net.JoinHostPort(c.Domain, r.port))
	} else {
		b.WriteString(c.Domain)
	}
	b.WriteString(r.path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	b.WriteByte('#')
	b.WriteString(pctEncode(taggedName(r.name, c)))
	return b.String()
}

func taggedName(name string, c models.Candidate) string {
	tag := "[CF-" + c.Tag() + "]"
	if name == "" {
		return tag
	}
	return name + " " + tag
}

// pctEncode escapes s for a query value or fragment, using %20 for spaces.
func pctEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
