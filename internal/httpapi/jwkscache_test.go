package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWKSCachePutGet(t *testing.T) {
	c := newJWKSCache(time.Minute)
	doc := jwksDocument{Keys: []jwk{{Kid: "k1"}}}
	c.put("url-a", doc)

	got, ok := c.get("url-a")
	require.True(t, ok)
	require.Equal(t, doc, got)
}

func TestJWKSCacheExpiresAfterTTL(t *testing.T) {
	c := newJWKSCache(time.Millisecond)
	c.put("url-a", jwksDocument{Keys: []jwk{{Kid: "k1"}}})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.get("url-a")
	require.False(t, ok)
}

func TestJWKSCacheEvictsLeastRecentlyUsedBeyondCapacity(t *testing.T) {
	c := newJWKSCache(time.Hour)
	for i := 0; i < jwksCacheSize+1; i++ {
		c.put(string(rune('a'+i)), jwksDocument{Keys: []jwk{{Kid: string(rune('a' + i))}}})
	}

	_, ok := c.get("a")
	require.False(t, ok, "oldest entry should have been evicted once capacity was exceeded")

	_, ok = c.get(string(rune('a' + jwksCacheSize)))
	require.True(t, ok, "most recently inserted entry should still be cached")
}

func TestJWKSCacheInvalidateForcesRefetch(t *testing.T) {
	c := newJWKSCache(time.Hour)
	c.put("url-a", jwksDocument{Keys: []jwk{{Kid: "k1"}}})
	c.invalidate("url-a")

	_, ok := c.get("url-a")
	require.False(t, ok)
}

func encodeJWTHeader(t *testing.T, kid string) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "RS256", "kid": kid})
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header)
}

func TestTokenKidExtractsKidFromWellFormedJWT(t *testing.T) {
	token := encodeJWTHeader(t, "key-42") + ".payload.signature"
	kid, ok := tokenKid(token)
	require.True(t, ok)
	require.Equal(t, "key-42", kid)
}

func TestTokenKidRejectsMalformedTokens(t *testing.T) {
	_, ok := tokenKid("not-a-jwt")
	require.False(t, ok)

	_, ok = tokenKid("aGVhZGVy.payload.sig") // header decodes but has no kid
	require.False(t, ok)
}
