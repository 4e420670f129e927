// Package pagination implements opaque, filter-bound page tokens.
//
// A token carries the sort key of the last entity returned and a fingerprint
// of the filters that produced the page. Tokens are sealed with an HMAC so
// clients cannot forge them, and a token presented with different filters
// is rejected with ErrInvalidCursor.
package pagination

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/teamspace-hq/teamspace/common/signing"
)

// ErrInvalidCursor is returned for malformed, forged or mismatched page tokens.
var ErrInvalidCursor = errors.New("invalid page token")

// Query is the paging part of a list request.
type Query struct {
	PageToken string
	Limit     int
}

// Page points at the next page. An empty PageToken means there is none.
type Page struct {
	PageToken string `json:"page_token"`
}

// ListResult is what every list operation returns.
type ListResult[T any] struct {
	Entities []T
	NextPage Page
}

// Codec seals and opens page tokens and clamps page sizes.
type Codec struct {
	signer       *signing.Signer
	defaultLimit int
	maxLimit     int
}

// NewCodec returns a codec keyed with key.
func NewCodec(key []byte, defaultLimit, maxLimit int) *Codec {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Codec{
		signer:       signing.NewSigner(key),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Limit applies the default to non-positive requests and caps the rest.
func (c *Codec) Limit(requested int) int {
	if requested <= 0 {
		return c.defaultLimit
	}
	if requested > c.maxLimit {
		return c.maxLimit
	}
	return requested
}

type tokenPayload struct {
	After       json.RawMessage `json:"a"`
	Fingerprint string          `json:"f"`
}

// Encode issues a token that resumes after the given sort key.
func (c *Codec) Encode(after any, fingerprint string) (string, error) {
	raw, err := json.Marshal(after)
	if err != nil {
		return "", fmt.Errorf("encode sort key: %w", err)
	}
	payload, err := json.Marshal(tokenPayload{After: raw, Fingerprint: fingerprint})
	if err != nil {
		return "", fmt.Errorf("encode page token: %w", err)
	}
	return c.signer.Seal(payload), nil
}

// Decode opens token into after. It returns false when token is empty.
// The token must have been issued with the same fingerprint.
func (c *Codec) Decode(token, fingerprint string, after any) (bool, error) {
	if token == "" {
		return false, nil
	}
	raw, err := c.signer.Open(token)
	if err != nil {
		return false, ErrInvalidCursor
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, ErrInvalidCursor
	}
	if p.Fingerprint != fingerprint {
		return false, fmt.Errorf("%w: filters changed", ErrInvalidCursor)
	}
	if err := json.Unmarshal(p.After, after); err != nil {
		return false, ErrInvalidCursor
	}
	return true, nil
}

// Fingerprint hashes the scope a list runs in, such as its resource and
// company, together with the recognised filters. Keys outside recognised and
// empty values are ignored so that unrecognised parameters never invalidate
// a token.
func Fingerprint(scope []string, filters map[string]string, recognised ...string) string {
	keys := make([]string, 0, len(recognised))
	for _, k := range recognised {
		if v := filters[k]; v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([][2]string, len(keys))
	for i, k := range keys {
		pairs[i] = [2]string{k, filters[k]}
	}
	// Marshalling strings cannot fail.
	raw, _ := json.Marshal(struct {
		Scope   []string    `json:"s"`
		Filters [][2]string `json:"f"`
	}{scope, pairs})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
