package crypto

import (
	"bytes"
	"testing"
)

func TestSignCallRecoverCaller(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	args := []byte(`{"listingId":7}`)

	sig, err := SignCall(key, "market_buyNative", args)
	if err != nil {
		t.Fatalf("sign call: %v", err)
	}

	recovered, err := RecoverCaller("market_buyNative", args, sig)
	if err != nil {
		t.Fatalf("recover caller: %v", err)
	}
	if !bytes.Equal(recovered[:], key.PubKey().Address().Bytes()) {
		t.Fatalf("recovered address does not match signer")
	}
}

func TestRecoverCallerRejectsMethodSwap(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	args := []byte(`{"listingId":7}`)

	sig, err := SignCall(key, "market_cancelListing", args)
	if err != nil {
		t.Fatalf("sign call: %v", err)
	}

	recovered, err := RecoverCaller("market_buyNative", args, sig)
	if err == nil && bytes.Equal(recovered[:], key.PubKey().Address().Bytes()) {
		t.Fatalf("signature replayed across methods")
	}
}

func TestSignCallValidation(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := SignCall(nil, "m", nil); err == nil {
		t.Fatalf("expected error for nil key")
	}
	if _, err := SignCall(key, "", nil); err == nil {
		t.Fatalf("expected error for empty method")
	}
	if _, err := RecoverCaller("m", nil, []byte("short")); err == nil {
		t.Fatalf("expected error for malformed signature")
	}
}

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatalf("address bytes changed during round trip")
	}
	if decoded.Prefix() != MarketPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}
