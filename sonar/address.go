package sonar

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/ipfs"
)

const maxAddressLength = 2 * eth.WordLength

var ErrAddressTooLong = errors.New("content address does not fit in two words")

// EncodeAddress stores the ASCII form of a content address in two bytes32
// words, right padded with zeros.
func EncodeAddress(address string) ([2]eth.Word, error) {
	var words [2]eth.Word
	if _, err := ipfs.ParseAddress(address); err != nil {
		return words, err
	}
	if len(address) > maxAddressLength {
		return words, fmt.Errorf("%w: %d bytes", ErrAddressTooLong, len(address))
	}

	var buf [maxAddressLength]byte
	copy(buf[:], address)
	copy(words[0][:], buf[:eth.WordLength])
	copy(words[1][:], buf[eth.WordLength:])

	return words, nil
}

// DecodeAddress is the inverse of EncodeAddress. Unset words decode to "".
func DecodeAddress(first, second eth.Word) string {
	buf := make([]byte, 0, maxAddressLength)
	buf = append(buf, first[:]...)
	buf = append(buf, second[:]...)

	return string(bytes.TrimRight(buf, "\x00"))
}
