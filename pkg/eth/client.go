package eth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
)

const (
	defUnlockDuration = 5 * time.Minute
	defReceiptPoll    = time.Second
	keystoreDir       = "keystore"
)

var (
	ErrKeyNotFound   = errors.New("account key not found in keystore")
	ErrUnlockFailed  = errors.New("node refused to unlock account")
	ErrEmptyPassword = errors.New("password file is empty")
	ErrTxFailed      = errors.New("transaction reverted")
	ErrEmptyEndpoint = errors.New("empty ethereum endpoint")
)

type Config struct {
	URL            string
	Header         http.Header
	UnlockDuration time.Duration
	ReceiptPoll    time.Duration
}

type ethMethods struct {
	Accounts              func(ctx context.Context) ([]Address, error)
	Call                  func(ctx context.Context, msg CallMsg, block string) (Bytes, error)
	SendTransaction       func(ctx context.Context, msg CallMsg) (Hash, error)
	GetTransactionReceipt func(ctx context.Context, hash Hash) (*Receipt, error)
}

type personalMethods struct {
	UnlockAccount func(ctx context.Context, addr Address, password string, duration uint64) (bool, error)
}

// Client talks to an Ethereum node over JSON-RPC.
type Client struct {
	eth      ethMethods
	personal personalMethods
	closers  []jsonrpc.ClientCloser
	cfg      Config
}

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyEndpoint
	}
	if cfg.UnlockDuration == 0 {
		cfg.UnlockDuration = defUnlockDuration
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = defReceiptPoll
	}

	c := &Client{cfg: cfg}

	ethCloser, err := jsonrpc.NewMergeClient(ctx, cfg.URL, "eth",
		[]interface{}{&c.eth},
		cfg.Header,
		jsonrpc.WithMethodNameFormatter(methodName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create eth rpc client: %w", err)
	}
	c.closers = append(c.closers, ethCloser)

	personalCloser, err := jsonrpc.NewMergeClient(ctx, cfg.URL, "personal",
		[]interface{}{&c.personal},
		cfg.Header,
		jsonrpc.WithMethodNameFormatter(methodName),
	)
	if err != nil {
		c.Close()

		return nil, fmt.Errorf("failed to create personal rpc client: %w", err)
	}
	c.closers = append(c.closers, personalCloser)

	return c, nil
}

// methodName maps a Go method such as "GetTransactionReceipt" in namespace
// "eth" to the wire name "eth_getTransactionReceipt".
func methodName(namespace, method string) string {
	return namespace + "_" + strings.ToLower(method[:1]) + method[1:]
}

func (c *Client) Close() {
	for _, closer := range c.closers {
		closer()
	}
	c.closers = nil
}

func (c *Client) Accounts(ctx context.Context) ([]Address, error) {
	return c.eth.Accounts(ctx)
}

// Connect prepares the operator account for signing. When dataDir is set the
// account key must be present in its keystore; when passwordFile is set the
// account is unlocked on the node with the first line of that file.
func (c *Client) Connect(ctx context.Context, operator Address, dataDir, passwordFile string) error {
	if dataDir != "" {
		if err := findKey(dataDir, operator); err != nil {
			return err
		}
	}

	if passwordFile == "" {
		return nil
	}

	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}

	ok, err := c.personal.UnlockAccount(ctx, operator, password, uint64(c.cfg.UnlockDuration.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to unlock account %s: %w", operator, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnlockFailed, operator)
	}

	return nil
}

func (c *Client) Call(ctx context.Context, to Address, data Bytes) ([]byte, error) {
	return c.eth.Call(ctx, CallMsg{To: &to, Data: data}, BlockLatest)
}

func (c *Client) SendTransaction(ctx context.Context, from, to Address, data Bytes) (Hash, error) {
	return c.eth.SendTransaction(ctx, CallMsg{From: &from, To: &to, Data: data})
}

// TransactionReceipt returns nil without error while the transaction is
// still pending.
func (c *Client) TransactionReceipt(ctx context.Context, hash Hash) (*Receipt, error) {
	return c.eth.GetTransactionReceipt(ctx, hash)
}

// WaitReceipt polls until the transaction is mined or ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, hash Hash) (Receipt, error) {
	ticker := time.NewTicker(c.cfg.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to fetch receipt for %s: %w", hash, err)
		}
		if receipt != nil && receipt.BlockNumber != nil {
			if receipt.Status != nil && *receipt.Status == 0 {
				return *receipt, fmt.Errorf("%w: %s", ErrTxFailed, hash)
			}

			return *receipt, nil
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func findKey(dataDir string, operator Address) error {
	dir := filepath.Join(dataDir, keystoreDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read keystore '%s': %w", dir, err)
	}

	suffix := operator.Hex()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), suffix) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s in %s", ErrKeyNotFound, operator, dir)
}

func readPassword(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open password file '%s': %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read password file '%s': %w", path, err)
		}

		return "", ErrEmptyPassword
	}

	password := strings.TrimRight(scanner.Text(), "\r")
	if password == "" {
		return "", ErrEmptyPassword
	}

	return password, nil
}
