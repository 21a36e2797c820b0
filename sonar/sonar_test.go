package sonar_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/ipfs"
	"github.com/openmined/mine/sonar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	weights   = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	gradients = "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"
)

var errBoom = errors.New("boom")

// backend answers calls by selector.
type backend struct {
	returns map[[4]byte][]eth.Word
	callErr error

	sent    []eth.Bytes
	from    eth.Address
	sendErr error
	receipt eth.Receipt
	waitErr error
}

func (b *backend) Call(_ context.Context, _ eth.Address, data eth.Bytes) ([]byte, error) {
	if b.callErr != nil {
		return nil, b.callErr
	}
	var sel [4]byte
	copy(sel[:], data[:4])

	var out []byte
	for _, w := range b.returns[sel] {
		out = append(out, w[:]...)
	}

	return out, nil
}

func (b *backend) SendTransaction(_ context.Context, from, _ eth.Address, data eth.Bytes) (eth.Hash, error) {
	b.from = from
	b.sent = append(b.sent, data)

	return b.receipt.TransactionHash, b.sendErr
}

func (b *backend) WaitReceipt(context.Context, eth.Hash) (eth.Receipt, error) {
	return b.receipt, b.waitErr
}

func addressWords(t *testing.T, address string) [2]eth.Word {
	t.Helper()

	words, err := sonar.EncodeAddress(address)
	require.NoError(t, err)

	return words
}

func TestAddressRoundTrip(t *testing.T) {
	cases := []struct {
		desc    string
		address string
		err     error
	}{
		{
			desc:    "CIDv0",
			address: weights,
		},
		{
			desc:    "CIDv1 base32",
			address: "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		},
		{
			desc:    "empty address",
			address: "",
			err:     ipfs.ErrEmptyAddress,
		},
		{
			desc:    "not a CID",
			address: "hello",
			err:     ipfs.ErrInvalidAddress,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			words, err := sonar.EncodeAddress(tc.address)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.address, sonar.DecodeAddress(words[0], words[1]))
		})
	}

	assert.Empty(t, sonar.DecodeAddress(eth.Word{}, eth.Word{}))
}

func TestModel(t *testing.T) {
	contract, _ := eth.ParseAddress("0x5e2a6b8e5b5d1e3f4c3b2a1908f7e6d5c4b3a291")
	owner, _ := eth.ParseAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	w := addressWords(t, weights)

	b := &backend{returns: map[[4]byte][]eth.Word{
		eth.Selector("getNumModels()"): {eth.WordFromUint64(2)},
		eth.Selector("getModel(uint256)"): {
			eth.WordFromAddress(owner),
			eth.WordFromUint64(100),
			eth.WordFromUint64(50),
			eth.WordFromUint64(5),
			w[0], w[1],
		},
		eth.Selector("getNumGradientsforModel(uint256)"): {eth.WordFromUint64(3)},
	}}
	g := sonar.New(b, contract, owner)

	count, err := g.ModelCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	m, err := g.Model(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, sonar.Model{
		ID:             1,
		Owner:          owner,
		Bounty:         100,
		InitialError:   50,
		TargetError:    5,
		GradientCount:  3,
		WeightsAddress: weights,
	}, m)
}

func TestModelErrors(t *testing.T) {
	cases := []struct {
		desc    string
		backend *backend
		err     error
	}{
		{
			desc:    "call fails",
			backend: &backend{callErr: errBoom},
			err:     errBoom,
		},
		{
			desc: "short result",
			backend: &backend{returns: map[[4]byte][]eth.Word{
				eth.Selector("getModel(uint256)"): {eth.WordFromUint64(1)},
			}},
			err: sonar.ErrUnexpectedResult,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			g := sonar.New(tc.backend, eth.Address{}, eth.Address{})
			_, err := g.Model(context.Background(), 0)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGradient(t *testing.T) {
	from, _ := eth.ParseAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	gw := addressWords(t, gradients)
	ww := addressWords(t, weights)

	b := &backend{returns: map[[4]byte][]eth.Word{
		eth.Selector("getGradient(uint256,uint256)"): {
			eth.WordFromUint64(7),
			eth.WordFromAddress(from),
			gw[0], gw[1],
			eth.WordFromUint64(12),
			ww[0], ww[1],
		},
	}}
	g := sonar.New(b, eth.Address{}, eth.Address{})

	gr, err := g.Gradient(context.Background(), 1, 6)
	require.NoError(t, err)
	assert.Equal(t, sonar.Gradient{
		ID:               7,
		From:             from,
		GradientsAddress: gradients,
		NewModelError:    12,
		WeightsAddress:   weights,
	}, gr)
}

func TestAddGradient(t *testing.T) {
	operator, _ := eth.ParseAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	hash, _ := eth.ParseHash("0x" + "cd" + "00000000000000000000000000000000000000000000000000000000000000")
	gw := addressWords(t, gradients)

	cases := []struct {
		desc    string
		address string
		sendErr error
		waitErr error
		err     error
		sent    int
	}{
		{
			desc:    "submit gradient",
			address: gradients,
			sent:    1,
		},
		{
			desc:    "invalid address",
			address: "nope",
			err:     ipfs.ErrInvalidAddress,
		},
		{
			desc:    "send fails",
			address: gradients,
			sendErr: errBoom,
			err:     errBoom,
			sent:    1,
		},
		{
			desc:    "transaction reverted",
			address: gradients,
			waitErr: eth.ErrTxFailed,
			err:     eth.ErrTxFailed,
			sent:    1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			b := &backend{
				sendErr: tc.sendErr,
				waitErr: tc.waitErr,
				receipt: eth.Receipt{TransactionHash: hash, GasUsed: 21000},
			}
			g := sonar.New(b, eth.Address{}, operator)

			receipt, err := g.AddGradient(context.Background(), 4, tc.address)
			assert.Len(t, b.sent, tc.sent)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, hash.String(), receipt.TxHash)
			assert.Equal(t, uint64(21000), receipt.GasUsed)
			assert.Equal(t, operator, b.from)

			want := eth.EncodeCall("addGradient(uint256,bytes32,bytes32)", eth.WordFromUint64(4), gw[0], gw[1])
			assert.Equal(t, want, b.sent[0])
		})
	}
}
