package ipfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	apiPrefix = "/api/v0"
	fileField = "file"
)

var (
	ErrEmptyURL       = errors.New("empty IPFS API URL")
	ErrEmptyAddress   = errors.New("empty content address")
	ErrInvalidAddress = errors.New("invalid content address")
	ErrNoFiles        = errors.New("no files to add")
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Dialer opens Clients against a Kubo compatible HTTP RPC endpoint.
type Dialer struct {
	baseURL string
	http    *http.Client
}

func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("ipfs url is not a valid URL: %w", err)
	}

	return &Dialer{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type Client struct {
	baseURL string
	http    *http.Client
	peerID  string
	online  bool
}

type File struct {
	Path string
	// Content is read instead of the file at Path when set.
	Content io.Reader
}

type AddResult struct {
	Name string
	Hash string
	Size uint64
}

type idResponse struct {
	ID           string   `json:"ID"`
	Addresses    []string `json:"Addresses"`
	AgentVersion string   `json:"AgentVersion"`
}

type addResponse struct {
	Name  string `json:"Name"`
	Hash  string `json:"Hash"`
	Size  string `json:"Size"`
	Bytes int64  `json:"Bytes"`
}

type apiError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
}

func (e apiError) Error() string {
	return fmt.Sprintf("ipfs api error %d: %s", e.Code, e.Message)
}

// Connect checks that the node answers and records whether it has swarm
// addresses, which is what the node reports as being online.
func (d *Dialer) Connect(ctx context.Context) (*Client, error) {
	c := &Client{
		baseURL: d.baseURL,
		http:    d.http,
	}

	resp, err := c.post(ctx, "id", nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to reach IPFS node: %w", err)
	}
	defer resp.Body.Close()

	var id idResponse
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("failed to decode IPFS id response: %w", err)
	}

	c.peerID = id.ID
	c.online = len(id.Addresses) > 0

	return c, nil
}

func (c *Client) IsOnline() bool {
	return c.online
}

func (c *Client) PeerID() string {
	return c.peerID
}

// Get streams the content stored under address into w.
func (c *Client) Get(ctx context.Context, address string, w io.Writer) error {
	if _, err := ParseAddress(address); err != nil {
		return err
	}

	resp, err := c.post(ctx, "cat", url.Values{"arg": {address}}, nil, "")
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", address, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read content of %s: %w", address, err)
	}

	return nil
}

// Add publishes files and returns one result per entry the node reports,
// in the order the node reports them.
func (c *Client) Add(ctx context.Context, files ...File) ([]AddResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeFiles(mw, files))
	}()

	resp, err := c.post(ctx, "add", url.Values{"pin": {"true"}, "stream-channels": {"true"}}, pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)

		return nil, fmt.Errorf("failed to add files: %w", err)
	}
	defer resp.Body.Close()

	var results []AddResult
	dec := json.NewDecoder(resp.Body)
	for {
		var entry addResponse
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("failed to decode add response: %w", err)
		}
		if entry.Hash == "" {
			// Progress report.
			continue
		}
		if _, err := ParseAddress(entry.Hash); err != nil {
			return nil, err
		}

		var size uint64
		if entry.Size != "" {
			size, err = strconv.ParseUint(entry.Size, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid size %q for %s: %w", entry.Size, entry.Name, err)
			}
		}
		results = append(results, AddResult{
			Name: entry.Name,
			Hash: entry.Hash,
			Size: size,
		})
	}

	return results, nil
}

// SamePath reports whether a name returned by the node refers to p. Nodes
// report names without the leading slash of absolute paths.
func SamePath(name, p string) bool {
	clean := func(s string) string {
		return strings.TrimPrefix(path.Clean("/"+s), "/")
	}

	return clean(name) == clean(p)
}

// ParseAddress validates a content address and returns its CID.
func ParseAddress(address string) (cid.Cid, error) {
	if address == "" {
		return cid.Undef, ErrEmptyAddress
	}
	c, err := cid.Decode(address)
	if err != nil {
		return cid.Undef, errors.Join(ErrInvalidAddress, err)
	}
	if _, err := multihash.Decode(c.Hash()); err != nil {
		return cid.Undef, errors.Join(ErrInvalidAddress, err)
	}

	return c, nil
}

func writeFiles(mw *multipart.Writer, files []File) error {
	for _, f := range files {
		if err := writeFile(mw, f); err != nil {
			return err
		}
	}

	return mw.Close()
}

func writeFile(mw *multipart.Writer, f File) error {
	content := f.Content
	if content == nil {
		file, err := os.Open(f.Path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", f.Path, err)
		}
		defer file.Close()
		content = file
	}

	part, err := mw.CreateFormFile(fileField, url.QueryEscape(f.Path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to stream %s: %w", f.Path, err)
	}

	return nil
}

func (c *Client) post(ctx context.Context, cmd string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := c.baseURL + apiPrefix + "/" + cmd
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return nil, fmt.Errorf("ipfs api returned unexpected status: %s", resp.Status)
		}

		return nil, apiErr
	}

	return resp, nil
}
