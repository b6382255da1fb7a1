package signedurl

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Location decides where a bucket is addressed.
type Location struct {
	Scheme string
	Host   string

	// VirtualHosted puts the bucket in the host name
	// (<bucket>.<host>/<key>) instead of the path (<host>/<bucket>/<key>).
	VirtualHosted bool
}

// DefaultLocation is path-style https://storage.googleapis.com.
var DefaultLocation = Location{Scheme: DefaultScheme, Host: DefaultHost}

// HostFor returns the value of the signed host header.
func (l Location) HostFor(bucket string) string {
	host := l.Host
	if host == "" {
		host = DefaultHost
	}
	if l.VirtualHosted {
		return bucket + "." + host
	}
	return host
}

// PathFor returns the canonical resource path.
func (l Location) PathFor(bucket, objectKey string) string {
	if l.VirtualHosted {
		return "/" + PathEscape(objectKey)
	}
	return "/" + bucket + "/" + PathEscape(objectKey)
}

func (l Location) scheme() string {
	if l.Scheme == "" {
		return DefaultScheme
	}
	return l.Scheme
}

// QueryParam is one unencoded query parameter.
type QueryParam struct {
	Key   string
	Value string
}

// EncodeQuery percent-encodes every key and value, sorts by encoded key and
// joins with '&'. Empty values are kept as "key=".
func EncodeQuery(params []QueryParam) string {
	encoded := make([]QueryParam, 0, len(params))
	for _, p := range params {
		encoded = append(encoded, QueryParam{Key: QueryEscape(p.Key), Value: QueryEscape(p.Value)})
	}
	sort.SliceStable(encoded, func(i, j int) bool {
		if encoded[i].Key != encoded[j].Key {
			return encoded[i].Key < encoded[j].Key
		}
		return encoded[i].Value < encoded[j].Value
	})

	pairs := make([]string, len(encoded))
	for i, p := range encoded {
		pairs[i] = p.Key + "=" + p.Value
	}
	return strings.Join(pairs, "&")
}

// CanonicalRequest is the exact text the string-to-sign digests.
type CanonicalRequest struct {
	Method           string
	ResourcePath     string
	QueryString      string
	CanonicalHeaders string // one "name:value\n" line per signed header
	SignedHeaders    string
	PayloadHash      string

	// Headers holds the signed header values keyed by lowercase name.
	Headers map[string]string
}

// String serializes the request. Because every header line ends with '\n',
// the headers block is followed by an empty line.
func (c *CanonicalRequest) String() string {
	return strings.Join([]string{
		c.Method,
		c.ResourcePath,
		c.QueryString,
		c.CanonicalHeaders,
		c.SignedHeaders,
		c.PayloadHash,
	}, "\n")
}

// BuildCredential returns the X-Goog-Credential value.
func BuildCredential(identity string, t SigningTime) string {
	return identity + "/" + BuildCredentialScope(t)
}

// BuildCanonicalRequest derives the canonical request for req signed at t
// and valid for expires. It performs no I/O.
func BuildCanonicalRequest(req SigningRequest, t SigningTime, expires time.Duration, loc Location) (*CanonicalRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	seconds := int64(expires / time.Second)
	if seconds <= 0 {
		return nil, invalid("lifetime", "expiry must be at least one second, got %v", expires)
	}

	headers := map[string]string{
		"host": normalizeHeaderValue(loc.HostFor(req.Bucket)),
	}
	if ct := normalizeHeaderValue(req.ContentType); ct != "" {
		headers["content-type"] = ct
	}
	canonicalHeaders, signedHeaders := BuildCanonicalHeaders(headers)

	query := []QueryParam{
		{Key: AlgorithmKey, Value: Algorithm},
		{Key: CredentialKey, Value: BuildCredential(strings.TrimSpace(req.SigningIdentity), t)},
		{Key: DateKey, Value: t.TimeFormat()},
		{Key: ExpiresKey, Value: strconv.FormatInt(seconds, 10)},
		{Key: SignedHeadersKey, Value: signedHeaders},
	}

	return &CanonicalRequest{
		Method:           strings.ToUpper(strings.TrimSpace(req.Method)),
		ResourcePath:     loc.PathFor(req.Bucket, req.ObjectKey),
		QueryString:      EncodeQuery(query),
		CanonicalHeaders: canonicalHeaders,
		SignedHeaders:    signedHeaders,
		PayloadHash:      UnsignedPayload,
		Headers:          headers,
	}, nil
}

// BuildCanonicalHeaders renders headers (keys are lowercased) sorted by
// name, and returns the matching semicolon-joined signed header list.
func BuildCanonicalHeaders(headers map[string]string) (canonical, signed string) {
	names := make([]string, 0, len(headers))
	values := make(map[string]string, len(headers))
	for k, v := range headers {
		name := strings.ToLower(strings.TrimSpace(k))
		names = append(names, name)
		values[name] = normalizeHeaderValue(v)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

// normalizeHeaderValue trims v and collapses internal whitespace runs to a
// single space.
func normalizeHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
