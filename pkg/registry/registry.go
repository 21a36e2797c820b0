// Package registry pulls trainer modules published as OCI artifacts.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	Scheme = "oci://"

	defTag = "latest"
	mib    = 1024 * 1024
)

var (
	ErrNoLayers    = errors.New("no valid layers found in manifest")
	ErrNotArtifact = errors.New("reference does not start with " + Scheme)
)

type Config struct {
	Username string `toml:"username"   env:"USERNAME"`
	Password string `toml:"password"   env:"PASSWORD"`
	// Token is a personal access token used instead of a password.
	Token     string `toml:"token"      env:"TOKEN"`
	PlainHTTP bool   `toml:"plain_http" env:"PLAIN_HTTP"`
}

type Client struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

// IsReference reports whether s names an artifact rather than a local file.
func IsReference(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// Fetch returns the largest layer of the artifact ref names, such as
// oci://ghcr.io/org/trainer:v1. A missing tag means latest.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if !IsReference(ref) {
		return nil, fmt.Errorf("%w: %s", ErrNotArtifact, ref)
	}
	name := strings.TrimPrefix(ref, Scheme)

	repo, err := remote.NewRepository(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository for %s: %w", name, err)
	}
	repo.PlainHTTP = c.cfg.PlainHTTP
	c.setupAuthentication(repo)

	manifest, err := fetchManifest(ctx, repo, name)
	if err != nil {
		return nil, err
	}

	layer, err := largestLayer(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to find layer for %s: %w", name, err)
	}

	c.logger.Info("Pulling trainer module",
		slog.String("reference", name),
		slog.String("digest", layer.Digest.String()),
		slog.String("size", fmt.Sprintf("%.2f MiB", float64(layer.Size)/mib)),
	)

	data, err := content.FetchAll(ctx, repo, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch layer for %s: %w", name, err)
	}

	return data, nil
}

func (c *Client) setupAuthentication(repo *remote.Repository) {
	var cred auth.Credential
	switch {
	case c.cfg.Username != "" && c.cfg.Password != "":
		cred = auth.Credential{
			Username: c.cfg.Username,
			Password: c.cfg.Password,
		}
	case c.cfg.Token != "":
		cred = auth.Credential{
			AccessToken: c.cfg.Token,
		}
	default:
		return
	}

	repo.Client = &auth.Client{
		Client:     retry.DefaultClient,
		Cache:      auth.NewCache(),
		Credential: auth.StaticCredential(repo.Reference.Registry, cred),
	}
}

func fetchManifest(ctx context.Context, repo *remote.Repository, name string) (ocispec.Manifest, error) {
	tag := repo.Reference.Reference
	if tag == "" {
		tag = defTag
	}

	desc, err := repo.Resolve(ctx, tag)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to resolve manifest for %s: %w", name, err)
	}

	data, err := content.FetchAll(ctx, repo, desc)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to fetch manifest for %s: %w", name, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to parse manifest for %s: %w", name, err)
	}

	return manifest, nil
}

func largestLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	var largest ocispec.Descriptor
	for _, layer := range manifest.Layers {
		if layer.Size > largest.Size {
			largest = layer
		}
	}

	if largest.Size == 0 {
		return ocispec.Descriptor{}, ErrNoLayers
	}

	return largest, nil
}
