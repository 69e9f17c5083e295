package cookies

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func names(cs []*http.Cookie) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name+"="+c.Value)
	}
	return out
}

func TestInsertRoundTrip(t *testing.T) {
	jar := NewJar()
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []Record{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", HTTPOnly: true, Secure: true, SameSite: SameSiteStrict},
		{Name: "pref", Value: "dark", Domain: "example.com", Path: "/app", MaxAge: time.Hour, SameSite: SameSiteLax},
		{Name: "tz", Value: "utc", Domain: "api.example.com", Path: "/v1", Expires: expires, SameSite: SameSiteNone},
	}

	for _, rec := range tests {
		ctx := mustURL(t, "https://"+rec.Domain+rec.Path)
		require.NoError(t, jar.Insert(rec, ctx))
	}

	snap := jar.Snapshot()
	require.Len(t, snap, 3)

	byKey := map[string]Record{}
	for _, r := range snap {
		byKey[r.Domain+"/"+r.Name] = r
	}

	for _, want := range tests {
		got, ok := byKey[want.Domain+"/"+want.Name]
		require.True(t, ok, want.Name)
		assert.Equal(t, want.Value, got.Value)
		assert.Equal(t, want.Path, got.Path)
		assert.Equal(t, want.HTTPOnly, got.HTTPOnly)
		assert.Equal(t, want.Secure, got.Secure)
		assert.Equal(t, want.MaxAge, got.MaxAge)
		assert.True(t, want.Expires.Equal(got.Expires))
		assert.Equal(t, want.SameSite, got.SameSite)
		assert.False(t, got.HostOnly)
	}
}

func TestInsertUpsertsByDomainAndName(t *testing.T) {
	jar := NewJar()
	ctx := mustURL(t, "https://example.com/")

	require.NoError(t, jar.Insert(Record{Name: "a", Value: "1", Domain: "example.com", Path: "/"}, ctx))
	require.NoError(t, jar.Insert(Record{Name: "a", Value: "2", Domain: "example.com", Path: "/other", Secure: true}, ctx))

	snap := jar.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "2", snap[0].Value)
	assert.Equal(t, "/other", snap[0].Path)
	assert.True(t, snap[0].Secure)
}

func TestInsertRejectsIncompatibleDomain(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		ctx    string
	}{
		{name: "different host", domain: "example.com", ctx: "https://evil.com/"},
		{name: "suffix without dot", domain: "ample.com", ctx: "https://example.com/"},
		{name: "subdomain of host", domain: "api.example.com", ctx: "https://example.com/"},
		{name: "public suffix", domain: "com", ctx: "https://example.com/"},
		{name: "ip with parent domain", domain: "0.1", ctx: "http://127.0.0.1/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar := NewJar()
			require.NoError(t, jar.Insert(Record{Name: "keep", Value: "1", Domain: "example.com", Path: "/"}, mustURL(t, "https://example.com/")))
			before := jar.Snapshot()

			err := jar.Insert(Record{Name: "x", Value: "y", Domain: tt.domain, Path: "/"}, mustURL(t, tt.ctx))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDomain)

			assert.Equal(t, before, jar.Snapshot())
		})
	}
}

func TestInsertRejectsMalformedDomain(t *testing.T) {
	for _, domain := range []string{"bad domain", "exa_mple..com", "-x-", "a.-b.com", "ex!ample.com"} {
		t.Run(domain, func(t *testing.T) {
			jar := NewJar()
			ctx := &url.URL{Scheme: "https", Host: domain, Path: "/"}

			err := jar.Insert(Record{Name: "x", Value: "y", Path: "/"}, ctx)
			assert.ErrorIs(t, err, ErrInvalidDomain)

			err = jar.Insert(Record{Name: "x", Value: "y", Domain: domain, Path: "/"}, mustURL(t, "https://example.com/"))
			assert.ErrorIs(t, err, ErrInvalidDomain)

			assert.Equal(t, 0, jar.Len())
		})
	}
}

func TestInsertAcceptsUnderscoreAndIP(t *testing.T) {
	jar := NewJar()
	require.NoError(t, jar.Insert(Record{Name: "a", Value: "1", Path: "/"}, &url.URL{Scheme: "https", Host: "my_host.example.com", Path: "/"}))
	require.NoError(t, jar.Insert(Record{Name: "b", Value: "2", Path: "/"}, mustURL(t, "http://[::1]:8080/")))
	assert.Equal(t, 2, jar.Len())
}

func TestInsertRejectsMalformedRecord(t *testing.T) {
	jar := NewJar()
	ctx := mustURL(t, "https://example.com/")

	for _, rec := range []Record{
		{Name: "", Value: "v", Domain: "example.com"},
		{Name: "bad name", Value: "v", Domain: "example.com"},
		{Name: "n", Value: "semi;colon", Domain: "example.com"},
	} {
		err := jar.Insert(rec, ctx)
		assert.ErrorIs(t, err, ErrInvalidCookie, rec.Name)
	}
	assert.Equal(t, 0, jar.Len())
}

func TestInsertDefaultsPathAndHostOnly(t *testing.T) {
	jar := NewJar()
	require.NoError(t, jar.Insert(Record{Name: "a", Value: "1"}, mustURL(t, "https://Example.COM:8443/docs/page")))

	snap := jar.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "example.com", snap[0].Domain)
	assert.Equal(t, "/docs", snap[0].Path)
	assert.True(t, snap[0].HostOnly)
}

func TestExpiredRecordDeletes(t *testing.T) {
	jar := NewJar()
	ctx := mustURL(t, "https://example.com/")

	require.NoError(t, jar.Insert(Record{Name: "a", Value: "1", Domain: "example.com", Path: "/"}, ctx))
	require.NoError(t, jar.Insert(Record{Name: "a", Value: "", Domain: "example.com", Path: "/", MaxAge: -1}, ctx))

	assert.Empty(t, jar.Snapshot())
}

func TestMaxAgeExpiresWithClock(t *testing.T) {
	jar := NewJar()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	jar.now = func() time.Time { return now }

	ctx := mustURL(t, "https://example.com/")
	require.NoError(t, jar.Insert(Record{Name: "short", Value: "1", Domain: "example.com", Path: "/", MaxAge: time.Minute}, ctx))
	require.NoError(t, jar.Insert(Record{Name: "session", Value: "1", Domain: "example.com", Path: "/"}, ctx))
	assert.Len(t, jar.Snapshot(), 2)

	now = now.Add(2 * time.Minute)
	snap := jar.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "session", snap[0].Name)
	assert.Equal(t, []string{"session=1"}, names(jar.Cookies(ctx)))
}

func TestClear(t *testing.T) {
	jar := NewJar()
	require.NoError(t, jar.Insert(Record{Name: "a", Value: "1", Domain: "example.com"}, mustURL(t, "https://example.com/")))
	require.Equal(t, 1, jar.Len())

	jar.Clear()
	assert.Equal(t, 0, jar.Len())
	assert.Empty(t, jar.Snapshot())
}

func TestCookiesMatching(t *testing.T) {
	jar := NewJar()
	base := mustURL(t, "https://www.example.com/")

	require.NoError(t, jar.Insert(Record{Name: "domain", Value: "1", Domain: "example.com", Path: "/"}, base))
	require.NoError(t, jar.Insert(Record{Name: "hostonly", Value: "2", Path: "/"}, base))
	require.NoError(t, jar.Insert(Record{Name: "secure", Value: "3", Domain: "example.com", Path: "/", Secure: true}, base))
	require.NoError(t, jar.Insert(Record{Name: "deep", Value: "4", Domain: "example.com", Path: "/api/v1"}, base))

	tests := []struct {
		url  string
		want []string
	}{
		{url: "https://www.example.com/", want: []string{"domain=1", "hostonly=2", "secure=3"}},
		{url: "http://www.example.com/", want: []string{"domain=1", "hostonly=2"}},
		{url: "https://api.example.com/", want: []string{"domain=1", "secure=3"}},
		{url: "https://www.example.com/api/v1/users", want: []string{"deep=4", "domain=1", "hostonly=2", "secure=3"}},
		{url: "https://www.example.com/api/v10", want: []string{"domain=1", "hostonly=2", "secure=3"}},
		{url: "https://other.test/", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, names(jar.Cookies(mustURL(t, tt.url))))
		})
	}
}

func TestSetCookiesFromResponse(t *testing.T) {
	jar := NewJar()
	u := mustURL(t, "https://example.com/login")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "sid", Value: "s1", Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode},
		{Name: "wide", Value: "w", Domain: ".example.com", MaxAge: 3600},
		{Name: "foreign", Value: "f", Domain: "other.test"},
	})

	snap := jar.Snapshot()
	require.Len(t, snap, 2)

	assert.Equal(t, "sid", snap[0].Name)
	assert.True(t, snap[0].HostOnly)
	assert.True(t, snap[0].HTTPOnly)
	assert.Equal(t, SameSiteLax, snap[0].SameSite)

	assert.Equal(t, "wide", snap[1].Name)
	assert.Equal(t, "example.com", snap[1].Domain)
	assert.Equal(t, time.Hour, snap[1].MaxAge)
	assert.True(t, snap[1].Persistent())

	// Max-Age=0 from the server deletes.
	jar.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "", Path: "/", MaxAge: -1}})
	assert.Len(t, jar.Snapshot(), 1)
}

func TestParseSameSite(t *testing.T) {
	for _, s := range []string{"Strict", "Lax", "None"} {
		v, err := ParseSameSite(s)
		require.NoError(t, err)
		assert.Equal(t, s, v.String())
	}

	_, err := ParseSameSite("strict")
	assert.Error(t, err)
}
