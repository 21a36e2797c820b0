package ipfs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmined/mine/pkg/ipfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	weights   = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	gradients = "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"
)

// kubo fakes the parts of the Kubo RPC API the client uses.
type kubo struct {
	addresses []string
	content   map[string]string
	uploaded  map[string]string
	extra     []map[string]any
}

func (k *kubo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	switch r.URL.Path {
	case "/api/v0/id":
		_ = json.NewEncoder(w).Encode(map[string]any{"ID": "12D3KooW", "Addresses": k.addresses})
	case "/api/v0/cat":
		data, ok := k.content[r.URL.Query().Get("arg")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"Message": "block was not found locally (offline)", "Code": 0, "Type": "error"})

			return
		}
		_, _ = io.WriteString(w, data)
	case "/api/v0/add":
		if r.URL.Query().Get("pin") != "true" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}
		mr, err := r.MultipartReader()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}
		enc := json.NewEncoder(w)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			name, _ := url.QueryUnescape(part.FileName())
			data, _ := io.ReadAll(part)
			k.uploaded[name] = string(data)
			_ = enc.Encode(map[string]any{"Name": name, "Bytes": len(data)})
			_ = enc.Encode(map[string]any{"Name": strings.TrimPrefix(name, "/"), "Hash": gradients, "Size": fmt.Sprint(len(data))})
		}
		for _, e := range k.extra {
			_ = enc.Encode(e)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func connect(t *testing.T, k *kubo) *ipfs.Client {
	t.Helper()

	ts := httptest.NewServer(k)
	t.Cleanup(ts.Close)

	d, err := ipfs.NewDialer(ipfs.Config{URL: ts.URL + "/"})
	require.NoError(t, err)
	c, err := d.Connect(context.Background())
	require.NoError(t, err)

	return c
}

func TestNewDialer(t *testing.T) {
	_, err := ipfs.NewDialer(ipfs.Config{})
	assert.ErrorIs(t, err, ipfs.ErrEmptyURL)
}

func TestConnect(t *testing.T) {
	cases := []struct {
		desc      string
		addresses []string
		online    bool
	}{
		{
			desc:      "online node",
			addresses: []string{"/ip4/127.0.0.1/tcp/4001"},
			online:    true,
		},
		{
			desc:   "offline node",
			online: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			c := connect(t, &kubo{addresses: tc.addresses})
			assert.Equal(t, tc.online, c.IsOnline())
			assert.Equal(t, "12D3KooW", c.PeerID())
		})
	}
}

func TestConnectUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	d, err := ipfs.NewDialer(ipfs.Config{URL: ts.URL})
	require.NoError(t, err)
	_, err = d.Connect(context.Background())
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	c := connect(t, &kubo{content: map[string]string{weights: "model weights"}})

	cases := []struct {
		desc    string
		address string
		want    string
		err     error
		apiErr  bool
	}{
		{
			desc:    "get stored content",
			address: weights,
			want:    "model weights",
		},
		{
			desc:    "get missing content",
			address: gradients,
			apiErr:  true,
		},
		{
			desc:    "get invalid address",
			address: "not-a-cid",
			err:     ipfs.ErrInvalidAddress,
		},
		{
			desc: "get empty address",
			err:  ipfs.ErrEmptyAddress,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			var buf bytes.Buffer
			err := c.Get(context.Background(), tc.address, &buf)
			switch {
			case tc.err != nil:
				assert.ErrorIs(t, err, tc.err)
			case tc.apiErr:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "block was not found")
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.want, buf.String())
			}
		})
	}
}

func TestAdd(t *testing.T) {
	k := &kubo{
		uploaded: map[string]string{},
		extra:    []map[string]any{{"Name": "tmp", "Hash": weights, "Size": "12"}},
	}
	c := connect(t, k)

	gradientPath := filepath.Join(t.TempDir(), "gradient.pkl")
	require.NoError(t, os.WriteFile(gradientPath, []byte("gradient"), 0o600))

	results, err := c.Add(context.Background(), ipfs.File{Path: gradientPath})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, ipfs.SamePath(results[0].Name, gradientPath))
	assert.Equal(t, gradients, results[0].Hash)
	assert.Equal(t, uint64(8), results[0].Size)
	assert.False(t, ipfs.SamePath(results[1].Name, gradientPath))
	assert.Equal(t, "gradient", k.uploaded[gradientPath])

	_, err = c.Add(context.Background())
	assert.ErrorIs(t, err, ipfs.ErrNoFiles)

	_, err = c.Add(context.Background(), ipfs.File{Path: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestAddContent(t *testing.T) {
	k := &kubo{uploaded: map[string]string{}}
	c := connect(t, k)

	results, err := c.Add(context.Background(), ipfs.File{Path: "/work/gradient.pkl", Content: strings.NewReader("inline")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "inline", k.uploaded["/work/gradient.pkl"])
}

func TestSamePath(t *testing.T) {
	cases := []struct {
		name, path string
		same       bool
	}{
		{name: "tmp/mine-1/gradient.pkl", path: "/tmp/mine-1/gradient.pkl", same: true},
		{name: "/tmp/mine-1/gradient.pkl", path: "/tmp/mine-1/gradient.pkl", same: true},
		{name: "tmp/mine-1", path: "/tmp/mine-1/gradient.pkl", same: false},
		{name: "gradient.pkl", path: "/tmp/mine-1/gradient.pkl", same: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.same, ipfs.SamePath(tc.name, tc.path))
		})
	}
}
