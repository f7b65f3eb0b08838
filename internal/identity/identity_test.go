package identity

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

const (
	knownHex  = "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	knownNpub = "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"
)

func TestDecodePublicKeyAcceptsHexAndNpub(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "hex", input: knownHex},
		{name: "uppercase-hex", input: strings.ToUpper(knownHex)},
		{name: "npub", input: knownNpub},
		{name: "mention", input: "@" + knownNpub},
		{name: "padded", input: "  " + knownHex + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DecodePublicKey(tt.input)
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if key.Hex() != knownHex {
				t.Fatalf("expected %s, got %s", knownHex, key.Hex())
			}
		})
	}
}

func TestDecodePublicKeyRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "short-hex", input: knownHex[:62]},
		{name: "long-hex", input: knownHex + "00"},
		{name: "non-hex", input: "zz" + knownHex[2:]},
		{name: "bad-checksum", input: knownNpub[:len(knownNpub)-1] + "7"},
		{name: "wrong-prefix", input: "note" + knownNpub[4:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePublicKey(tt.input)
			if err == nil {
				t.Fatalf("expected decode error for %q", tt.input)
			}
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestPublicKeyNpubMatchesKnownEncoding(t *testing.T) {
	key := MustPublicKey(knownHex)
	if key.Npub() != knownNpub {
		t.Fatalf("expected %s, got %s", knownNpub, key.Npub())
	}
}

func TestDecodeEventIDAcceptsNoteEncoding(t *testing.T) {
	id := MustEventID(knownHex)
	encoded := id.Bech32()
	if !strings.HasPrefix(encoded, "note1") {
		t.Fatalf("expected note1 prefix, got %s", encoded)
	}
	decoded, err := DecodeEventID(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded != id {
		t.Fatalf("expected %s, got %s", id, decoded)
	}
}

func TestDecodeEventIDRejectsNpub(t *testing.T) {
	if _, err := DecodeEventID(knownNpub); err == nil {
		t.Fatal("expected npub to be rejected as an event id")
	}
}

func TestDecodeHexIsCanonical(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), Size, Size).Draw(t, "raw")
		encoded := hex.EncodeToString(raw)

		key, err := DecodePublicKey(encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if key.Hex() != encoded {
			t.Fatalf("expected %s, got %s", encoded, key.Hex())
		}
		if key.IsZero() != (encoded == strings.Repeat("0", hexLength)) {
			t.Fatalf("zero check mismatch for %s", encoded)
		}
	})
}
