package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	digestAMD64       = "sha256:05c7825f52b2b5e90b276886cd79929b10167d297b553a90064b1a0e19354024"
	digestARM64       = "sha256:4ef68332e84f91deca6e3c5a1f35bd44f01074fcb7a54c481a458868cbfbb6e3"
	digestAttestation = "sha256:89f2d6a529c8b56932049591ea764cc8e58f6bfc3a9a5cba574de196c6639c26"
)

func indexBody(entries ...string) string {
	return fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.index.v1+json",
		"manifests": [%s]
	}`, strings.Join(entries, ","))
}

func manifestEntry(digest string) string {
	return fmt.Sprintf(`{
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"digest": %q,
		"size": 1201,
		"platform": {"architecture": "amd64", "os": "linux"}
	}`, digest)
}

func TestManifestDigestsResolvesIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/pdcastro/oh_so_smart/manifests/v1", r.URL.Path)
		assert.Contains(t, r.Header.Get("Accept"), "application/vnd.oci.image.index.v1+json")
		assert.Contains(t, r.Header.Get("Accept"), "application/vnd.docker.distribution.manifest.list.v2+json")

		w.Header().Set("Content-Type", "application/vnd.oci.image.index.v1+json")
		_, _ = w.Write([]byte(indexBody(
			manifestEntry(digestAMD64),
			manifestEntry(digestARM64),
			manifestEntry(digestAttestation),
		)))
	}))
	defer server.Close()

	digests, err := New(server.URL).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")

	require.NoError(t, err)
	require.Len(t, digests, 3)
	assert.Equal(t, digestAMD64, digests[0].String())
	assert.Equal(t, digestARM64, digests[1].String())
	assert.Equal(t, digestAttestation, digests[2].String())
}

func TestManifestDigestsTokenDance(t *testing.T) {
	var tokenRequests int
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenRequests++
			assert.Equal(t, "ghcr.io", r.URL.Query().Get("service"))
			assert.Equal(t, "repository:pdcastro/oh_so_smart:pull", r.URL.Query().Get("scope"))
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "token", user)
			assert.Equal(t, "ghp_secret", pass)
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "exchanged-token"})

		case "/v2/pdcastro/oh_so_smart/manifests/v1":
			if r.Header.Get("Authorization") == "" {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(
					`Bearer realm=%q,service="ghcr.io",scope="repository:pdcastro/oh_so_smart:pull"`,
					server.URL+"/token"))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "Bearer exchanged-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(indexBody(manifestEntry(digestAMD64))))

		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(server.URL).WithToken("ghp_secret")

	digests, err := client.ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")
	require.NoError(t, err)
	require.Len(t, digests, 1)

	// The second resolve reuses the cached token
	_, err = client.ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenRequests)
}

func TestManifestDigestsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}`))
	}))
	defer server.Close()

	_, err := New(server.URL).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "gone")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrManifestNotFound))

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, http.StatusNotFound, regErr.StatusCode)
	assert.Equal(t, "gone", regErr.Reference)
	assert.Contains(t, regErr.Message, "manifest unknown")
}

func TestManifestDigestsSkipsEntriesWithoutDigest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(indexBody(
			manifestEntry(digestAMD64),
			`{"mediaType": "application/vnd.oci.image.manifest.v1+json", "size": 99}`,
		)))
	}))
	defer server.Close()

	digests, err := New(server.URL).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")

	require.NoError(t, err)
	require.Len(t, digests, 1)
	assert.Equal(t, digestAMD64, digests[0].String())
}

func TestManifestDigestsEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(indexBody()))
	}))
	defer server.Close()

	digests, err := New(server.URL).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")

	require.NoError(t, err)
	assert.Empty(t, digests)
}

func TestManifestDigestsPlainManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"schemaVersion": 2,
			"mediaType": "application/vnd.oci.image.manifest.v1+json",
			"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": "` + digestAMD64 + `", "size": 7023},
			"layers": []
		}`))
	}))
	defer server.Close()

	// A single-platform manifest has no manifest list; callers see the
	// same empty result as an empty index.
	digests, err := New(server.URL).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")

	require.NoError(t, err)
	assert.Empty(t, digests)
}

func TestManifestDigestsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, err := New(server.URL).WithRetryMax(0).ManifestDigests(context.Background(), "pdcastro/oh_so_smart", "v1")

	require.Error(t, err)
	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, http.StatusInternalServerError, regErr.StatusCode)
	assert.False(t, errors.Is(err, ErrManifestNotFound))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	require.NoError(t, New(server.URL).Ping(context.Background()))
}

func TestPingUnauthenticated(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "anon"})
		case "/v2/":
			if r.Header.Get("Authorization") == "" {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q,service="ghcr.io"`, server.URL+"/token"))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	require.NoError(t, New(server.URL).Ping(context.Background()))
}
