package eth

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	AddressLength = 20
	HashLength    = 32

	BlockLatest  = "latest"
	BlockPending = "pending"
)

var (
	ErrInvalidAddress = errors.New("invalid ethereum address")
	ErrInvalidHash    = errors.New("invalid ethereum hash")
	ErrInvalidHex     = errors.New("invalid hex value")
)

// Address is a 20 byte Ethereum account or contract address.
type Address [AddressLength]byte

func ParseAddress(s string) (Address, error) {
	b, err := decodeHexString(s, AddressLength)
	if err != nil {
		return Address{}, errors.Join(ErrInvalidAddress, err)
	}
	var a Address
	copy(a[:], b)

	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hex returns the lowercase hex encoding without the 0x prefix, the form
// geth uses in keystore file names.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = addr

	return nil
}

type Hash [HashLength]byte

func ParseHash(s string) (Hash, error) {
	b, err := decodeHexString(s, HashLength)
	if err != nil {
		return Hash{}, errors.Join(ErrInvalidHash, err)
	}
	var h Hash
	copy(h[:], b)

	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	hash, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = hash

	return nil
}

// Uint64 is a quantity encoded as a 0x prefixed hex string on the wire.
type Uint64 uint64

func (u Uint64) Hex() string {
	return "0x" + strconv.FormatUint(uint64(u), 16)
}

func (u Uint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Hex())
}

// UnmarshalJSON accepts a hex string, a decimal string or a bare number.
func (u *Uint64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			base = 16
			s = s[2:]
		}
		v, err := strconv.ParseUint(s, base, 64)
		if err != nil {
			return errors.Join(ErrInvalidHex, err)
		}
		*u = Uint64(v)

		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("cannot interpret %s as a quantity: %w", string(b), err)
	}
	*u = Uint64(v)

	return nil
}

// Bytes is arbitrary binary data encoded as a 0x prefixed hex string.
type Bytes []byte

func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := DecodeHexString(s)
	if err != nil {
		return err
	}
	*b = decoded

	return nil
}

// CallMsg is the transaction object accepted by eth_call and
// eth_sendTransaction.
type CallMsg struct {
	From *Address `json:"from,omitempty"`
	To   *Address `json:"to,omitempty"`
	Gas  *Uint64  `json:"gas,omitempty"`
	Data Bytes    `json:"data,omitempty"`
}

type Receipt struct {
	TransactionHash Hash    `json:"transactionHash"`
	BlockNumber     *Uint64 `json:"blockNumber"`
	GasUsed         Uint64  `json:"gasUsed"`
	// Status is absent on pre-Byzantium chains.
	Status *Uint64 `json:"status"`
}

func DecodeHexString(s string) ([]byte, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return nil, errors.Join(ErrInvalidHex, err)
	}

	return b, nil
}

func decodeHexString(s string, expectedLen int) ([]byte, error) {
	s = trimHexPrefix(s)
	if len(s) != expectedLen*2 {
		return nil, fmt.Errorf("expected hex string length sans prefix %d, got %d", expectedLen*2, len(s))
	}

	return DecodeHexString(s)
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	// Some nodes omit the leading zero of the first byte.
	if len(s)%2 == 1 {
		s = "0" + s
	}

	return s
}
