package eth_test

import (
	"encoding/hex"
	"testing"

	"github.com/openmined/mine/pkg/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	cases := []struct {
		desc      string
		signature string
		want      string
	}{
		{
			desc:      "erc20 transfer",
			signature: "transfer(address,uint256)",
			want:      "a9059cbb",
		},
		{
			desc:      "erc20 balanceOf",
			signature: "balanceOf(address)",
			want:      "70a08231",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			sel := eth.Selector(tc.signature)
			assert.Equal(t, tc.want, hex.EncodeToString(sel[:]))
		})
	}
}

func TestEncodeCall(t *testing.T) {
	addr, err := eth.ParseAddress("0x00a329c0648769a73afac7f9381e08fb43dbea72")
	require.NoError(t, err)

	data := eth.EncodeCall("transfer(address,uint256)", eth.WordFromAddress(addr), eth.WordFromUint64(1000))
	want := "a9059cbb" +
		"00000000000000000000000000a329c0648769a73afac7f9381e08fb43dbea72" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
	assert.Equal(t, want, hex.EncodeToString(data))

	words, err := eth.DecodeWords(data[4:])
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, addr, words[0].Address())

	v, err := words[1].Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), v)
}

func TestDecodeWords(t *testing.T) {
	_, err := eth.DecodeWords(make([]byte, 33))
	assert.ErrorIs(t, err, eth.ErrShortData)

	words, err := eth.DecodeWords(nil)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestWordUint64Overflow(t *testing.T) {
	var w eth.Word
	w[0] = 1

	_, err := w.Uint64()
	assert.ErrorIs(t, err, eth.ErrOverflow)
}
