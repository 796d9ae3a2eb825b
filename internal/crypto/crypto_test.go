package crypto_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"rchat/internal/crypto"
	"rchat/internal/domain"
)

// testCode returns a fixed high-entropy chat code so derivations are
// reproducible across test runs.
func testCode(t *testing.T) string {
	t.Helper()
	b := make([]byte, 64)
	for i := range b {
		b[i] = byte(i)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestGenerateChatCode_Shape(t *testing.T) {
	code, err := crypto.GenerateChatCode()
	if err != nil {
		t.Fatalf("GenerateChatCode: %v", err)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		t.Fatalf("generated code is not base64url: %v", err)
	}
	if len(decoded) != 64 {
		t.Fatalf("generated code decodes to %d bytes, want 64", len(decoded))
	}
	if err := crypto.ValidateChatCode(code); err != nil {
		t.Fatalf("generated code rejected: %v", err)
	}
}

func TestGenerateNumericChatCode_Range(t *testing.T) {
	for i := 0; i < 32; i++ {
		code, err := crypto.GenerateNumericChatCode()
		if err != nil {
			t.Fatalf("GenerateNumericChatCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("numeric code %q is not 6 digits", code)
		}
		if code[0] == '0' {
			t.Fatalf("numeric code %q below 100000", code)
		}
		if err := crypto.ValidateChatCode(code); err != nil {
			t.Fatalf("numeric code rejected: %v", err)
		}
	}
}

func TestValidateChatCode_Rejects(t *testing.T) {
	cases := []string{
		"",
		"12345",         // five digits
		"1234567",       // seven digits
		"12345a",        // not numeric, not valid base64 length
		"!!notbase64!!", // bad alphabet
		base64.RawURLEncoding.EncodeToString(make([]byte, 32)), // wrong length
	}
	for _, code := range cases {
		if err := crypto.ValidateChatCode(code); !errors.Is(err, domain.ErrInvalidChatCode) {
			t.Fatalf("ValidateChatCode(%q) = %v, want ErrInvalidChatCode", code, err)
		}
	}
}

func TestDeriveRoomID_Deterministic(t *testing.T) {
	code := testCode(t)
	a, err := crypto.DeriveRoomID(code)
	if err != nil {
		t.Fatalf("DeriveRoomID: %v", err)
	}
	b, err := crypto.DeriveRoomID(code)
	if err != nil {
		t.Fatalf("DeriveRoomID: %v", err)
	}
	if a != b {
		t.Fatal("room ID derivation is not deterministic")
	}

	raw, err := base64.RawURLEncoding.DecodeString(a.String())
	if err != nil {
		t.Fatalf("room ID is not base64url: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("room ID decodes to %d bytes, want 64", len(raw))
	}

	other, err := crypto.DeriveRoomID("123456")
	if err != nil {
		t.Fatalf("DeriveRoomID numeric: %v", err)
	}
	if a == other {
		t.Fatal("distinct codes derived the same room ID")
	}
}

func TestDeriveRoomID_InvalidCode(t *testing.T) {
	if _, err := crypto.DeriveRoomID("not a code"); !errors.Is(err, domain.ErrInvalidChatCode) {
		t.Fatalf("DeriveRoomID = %v, want ErrInvalidChatCode", err)
	}
}

func TestDeriveChatKey_Deterministic(t *testing.T) {
	code := testCode(t)
	k1, err := crypto.DeriveChatKey(code)
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	defer k1.Zeroize()
	k2, err := crypto.DeriveChatKey(code)
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	defer k2.Zeroize()

	r1, r2 := k1.Root(), k2.Root()
	if !bytes.Equal(r1[:], r2[:]) {
		t.Fatal("root key derivation is not deterministic")
	}
	if k1.Index() != 0 {
		t.Fatalf("fresh chain index = %d, want 0", k1.Index())
	}
	k1.AdvanceIndex()
	if k1.Index() != 1 {
		t.Fatalf("advanced chain index = %d, want 1", k1.Index())
	}
}

// Two clients holding the same numeric code must derive bit-identical
// roots and room IDs.
func TestNumericCode_Interop(t *testing.T) {
	const code = "654321"

	id1, err := crypto.DeriveRoomID(code)
	if err != nil {
		t.Fatalf("DeriveRoomID: %v", err)
	}
	id2, err := crypto.DeriveRoomID(code)
	if err != nil {
		t.Fatalf("DeriveRoomID: %v", err)
	}
	if id1 != id2 {
		t.Fatal("numeric room IDs differ")
	}

	k1, err := crypto.DeriveChatKey(code)
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	defer k1.Zeroize()
	k2, err := crypto.DeriveChatKey(code)
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	defer k2.Zeroize()

	r1, r2 := k1.Root(), k2.Root()
	if !bytes.Equal(r1[:], r2[:]) {
		t.Fatal("numeric root keys differ")
	}
}

func TestChatKey_SealOpenRoundTrip(t *testing.T) {
	k, err := crypto.DeriveChatKey(testCode(t))
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	defer k.Zeroize()

	box, err := k.Seal([]byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := k.Open(box)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("round trip got %q", pt)
	}
}

func TestChatKey_Zeroize(t *testing.T) {
	k, err := crypto.DeriveChatKey(testCode(t))
	if err != nil {
		t.Fatalf("DeriveChatKey: %v", err)
	}
	k.Zeroize()
	root := k.Root()
	if !bytes.Equal(root[:], make([]byte, 32)) {
		t.Fatal("root key survived Zeroize")
	}
}
