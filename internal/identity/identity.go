package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

// Size is the byte length of public keys and event identifiers.
const Size = 32

const (
	prefixPublicKey = "npub"
	prefixNote      = "note"
	hexLength       = Size * 2
)

var (
	// ErrDecode indicates that an external key or identifier encoding is malformed.
	ErrDecode = errors.New("identity: decode failed")
)

// PublicKey is the canonical binary form of a user's public key.
type PublicKey [Size]byte

// EventID is the canonical binary form of an event content hash.
type EventID [Size]byte

// DecodePublicKey accepts a hex encoded key or an npub bech32 string.
func DecodePublicKey(rawInput string) (PublicKey, error) {
	raw, err := decode(rawInput, prefixPublicKey)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey(raw), nil
}

// DecodeEventID accepts a hex encoded event id or a note bech32 string.
func DecodeEventID(rawInput string) (EventID, error) {
	raw, err := decode(rawInput, prefixNote)
	if err != nil {
		return EventID{}, err
	}
	return EventID(raw), nil
}

// MustPublicKey decodes the value or panics. Intended for constants and tests.
func MustPublicKey(rawInput string) PublicKey {
	key, err := DecodePublicKey(rawInput)
	if err != nil {
		panic(err)
	}
	return key
}

// MustEventID decodes the value or panics. Intended for constants and tests.
func MustEventID(rawInput string) EventID {
	id, err := DecodeEventID(rawInput)
	if err != nil {
		panic(err)
	}
	return id
}

// Hex returns the lowercase hex form.
func (key PublicKey) Hex() string {
	return hex.EncodeToString(key[:])
}

// String returns the lowercase hex form.
func (key PublicKey) String() string {
	return key.Hex()
}

// IsZero reports whether the key is unset.
func (key PublicKey) IsZero() bool {
	return key == PublicKey{}
}

// Npub returns the NIP-19 encoding, or the hex form if encoding fails.
func (key PublicKey) Npub() string {
	encoded, err := nip19.EncodePublicKey(key.Hex())
	if err != nil {
		return key.Hex()
	}
	return encoded
}

// Hex returns the lowercase hex form.
func (id EventID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String returns the lowercase hex form.
func (id EventID) String() string {
	return id.Hex()
}

// IsZero reports whether the identifier is unset.
func (id EventID) IsZero() bool {
	return id == EventID{}
}

// Bech32 returns the NIP-19 note encoding, or the hex form if encoding fails.
func (id EventID) Bech32() string {
	encoded, err := nip19.EncodeNote(id.Hex())
	if err != nil {
		return id.Hex()
	}
	return encoded
}

func decode(rawInput string, expectedPrefix string) ([Size]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(rawInput), "@")
	if trimmed == "" {
		return [Size]byte{}, fmt.Errorf("%w: empty", ErrDecode)
	}
	if strings.HasPrefix(strings.ToLower(trimmed), expectedPrefix+"1") {
		return decodeBech32(trimmed, expectedPrefix)
	}
	return decodeHex(trimmed)
}

func decodeBech32(value string, expectedPrefix string) ([Size]byte, error) {
	prefix, data, err := nip19.Decode(value)
	if err != nil {
		return [Size]byte{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if prefix != expectedPrefix {
		return [Size]byte{}, fmt.Errorf("%w: unexpected prefix %q", ErrDecode, prefix)
	}
	hexValue, ok := data.(string)
	if !ok {
		return [Size]byte{}, fmt.Errorf("%w: unexpected %s payload", ErrDecode, prefix)
	}
	return decodeHex(hexValue)
}

func decodeHex(value string) ([Size]byte, error) {
	var out [Size]byte
	if len(value) != hexLength {
		return out, fmt.Errorf("%w: expected %d hex characters, got %d", ErrDecode, hexLength, len(value))
	}
	if _, err := hex.Decode(out[:], []byte(value)); err != nil {
		return [Size]byte{}, fmt.Errorf("%w: invalid hex", ErrDecode)
	}
	return out, nil
}
