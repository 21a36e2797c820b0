package registry_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/openmined/mine/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves a single repository from memory.
type fakeRegistry struct {
	repo      string
	tags      map[string]digest.Digest
	manifests map[digest.Digest][]byte
	blobs     map[digest.Digest][]byte
	user      string
	pass      string
}

func newFakeRegistry(t *testing.T, repo, tag string, layers ...[]byte) *fakeRegistry {
	t.Helper()

	f := &fakeRegistry{
		repo:      repo,
		tags:      map[string]digest.Digest{},
		manifests: map[digest.Digest][]byte{},
		blobs:     map[digest.Digest][]byte{},
	}

	config := []byte("{}")
	f.blobs[digest.FromBytes(config)] = config

	manifest := ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeEmptyJSON,
			Digest:    digest.FromBytes(config),
			Size:      int64(len(config)),
		},
	}
	manifest.SchemaVersion = 2
	for _, layer := range layers {
		d := digest.FromBytes(layer)
		f.blobs[d] = layer
		manifest.Layers = append(manifest.Layers, ocispec.Descriptor{
			MediaType: "application/wasm",
			Digest:    d,
			Size:      int64(len(layer)),
		})
	}

	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	d := digest.FromBytes(data)
	f.manifests[d] = data
	f.tags[tag] = d

	return f
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.user != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != f.user || pass != f.pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="fake"`)
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
	}

	prefix := "/v2/" + f.repo + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)

		return
	}
	kind, ref, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, prefix), "/")

	var (
		data      []byte
		d         digest.Digest
		mediaType = "application/octet-stream"
	)
	switch kind {
	case "manifests":
		d = digest.Digest(ref)
		if tagged, ok := f.tags[ref]; ok {
			d = tagged
		}
		data = f.manifests[d]
		mediaType = ocispec.MediaTypeImageManifest
	case "blobs":
		d = digest.Digest(ref)
		data = f.blobs[d]
	}
	if data == nil {
		w.WriteHeader(http.StatusNotFound)

		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Docker-Content-Digest", d.String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsReference(t *testing.T) {
	assert.True(t, registry.IsReference("oci://ghcr.io/openmined/trainer:v1"))
	assert.False(t, registry.IsReference("trainer.wasm"))
	assert.False(t, registry.IsReference("/opt/oci/trainer.wasm"))
}

func TestFetch(t *testing.T) {
	small := []byte("readme")
	module := []byte("\x00asm\x01\x00\x00\x00 trainer module bytes")

	reg := newFakeRegistry(t, "openmined/trainer", "v1", small, module)
	srv := httptest.NewServer(reg)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	empty := newFakeRegistry(t, "openmined/empty", "latest")
	emptySrv := httptest.NewServer(empty)
	t.Cleanup(emptySrv.Close)
	emptyHost := strings.TrimPrefix(emptySrv.URL, "http://")

	cases := []struct {
		desc string
		ref  string
		data []byte
		err  error
	}{
		{
			desc: "largest layer by tag",
			ref:  "oci://" + host + "/openmined/trainer:v1",
			data: module,
		},
		{
			desc: "largest layer by digest",
			ref:  "oci://" + host + "/openmined/trainer@" + reg.tags["v1"].String(),
			data: module,
		},
		{
			desc: "missing tag",
			ref:  "oci://" + host + "/openmined/trainer:v2",
		},
		{
			desc: "manifest without layers",
			ref:  "oci://" + emptyHost + "/openmined/empty",
			err:  registry.ErrNoLayers,
		},
		{
			desc: "local path",
			ref:  "trainer.wasm",
			err:  registry.ErrNotArtifact,
		},
		{
			desc: "invalid reference",
			ref:  "oci://" + host + "/Invalid Repo",
		},
	}

	client := registry.New(registry.Config{PlainHTTP: true}, discard())
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			data, err := client.Fetch(context.Background(), tc.ref)
			if tc.data == nil {
				require.Error(t, err)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err)
				}

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.data, data)
		})
	}
}

func TestFetchWithCredentials(t *testing.T) {
	module := []byte("\x00asm\x01\x00\x00\x00 private trainer")

	reg := newFakeRegistry(t, "openmined/private", "v1", module)
	reg.user, reg.pass = "miner", "secret"
	srv := httptest.NewServer(reg)
	t.Cleanup(srv.Close)
	ref := "oci://" + strings.TrimPrefix(srv.URL, "http://") + "/openmined/private:v1"

	_, err := registry.New(registry.Config{PlainHTTP: true}, discard()).Fetch(context.Background(), ref)
	assert.Error(t, err)

	cfg := registry.Config{Username: "miner", Password: "secret", PlainHTTP: true}
	data, err := registry.New(cfg, discard()).Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, module, data)
}
