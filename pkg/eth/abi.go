package eth

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const WordLength = 32

var (
	ErrShortData = errors.New("abi data is not a multiple of 32 bytes")
	ErrOverflow  = errors.New("abi word overflows 64 bits")
)

// Word is a single 32 byte ABI slot.
type Word [WordLength]byte

// Selector returns the 4 byte function selector of a canonical signature
// such as "getModel(uint256)".
func Selector(signature string) [4]byte {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(signature))

	var sel [4]byte
	copy(sel[:], hasher.Sum(nil)[:4])

	return sel
}

// EncodeCall packs a selector followed by static arguments.
func EncodeCall(signature string, args ...Word) Bytes {
	sel := Selector(signature)
	out := make([]byte, 0, len(sel)+len(args)*WordLength)
	out = append(out, sel[:]...)
	for _, arg := range args {
		out = append(out, arg[:]...)
	}

	return out
}

// DecodeWords splits static return data into words.
func DecodeWords(data []byte) ([]Word, error) {
	if len(data)%WordLength != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrShortData, len(data))
	}
	words := make([]Word, len(data)/WordLength)
	for i := range words {
		copy(words[i][:], data[i*WordLength:(i+1)*WordLength])
	}

	return words, nil
}

func WordFromUint64(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[WordLength-8:], v)

	return w
}

func WordFromAddress(a Address) Word {
	var w Word
	copy(w[WordLength-AddressLength:], a[:])

	return w
}

func (w Word) Uint64() (uint64, error) {
	for _, b := range w[:WordLength-8] {
		if b != 0 {
			return 0, ErrOverflow
		}
	}

	return binary.BigEndian.Uint64(w[WordLength-8:]), nil
}

func (w Word) Address() Address {
	var a Address
	copy(a[:], w[WordLength-AddressLength:])

	return a
}
