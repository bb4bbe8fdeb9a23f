package crypto

import (
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/omyratechnologies/KCS-Backend-sub002/internal/apperrors"
	"github.com/omyratechnologies/KCS-Backend-sub002/internal/models"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString("6368616e676520746869732070617373776f726420746f206120736563726574")
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func testCredentialSet() models.CredentialSet {
	return models.CredentialSet{
		models.GatewayRazorpay: {
			Enabled: true,
			Mode:    models.ModeLive,
			Credentials: models.RazorpayCredentials{
				KeyID:         "rzp_live_abc123",
				KeySecret:     "supersecretvalue42",
				WebhookSecret: "whsec_9876543210",
			},
		},
		models.GatewayPayU: {
			Enabled: false,
			Credentials: models.PayUCredentials{
				MerchantKey:  "merchant_key_1",
				MerchantSalt: "merchant_salt_xyz",
			},
		},
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	set := testCredentialSet()
	envelope, err := c.Encrypt(set)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if envelope.Algorithm != Algorithm {
		t.Errorf("Algorithm = %q, want %q", envelope.Algorithm, Algorithm)
	}

	got, err := c.Decrypt(envelope)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}

	if !reflect.DeepEqual(got, set) {
		t.Errorf("round-trip mismatch:\ngot  %#v\nwant %#v", got, set)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	c, err := NewCipher(testKey(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := c.Encrypt(testCredentialSet())
	if err != nil {
		t.Fatal(err)
	}

	flipHexChar := func(s string) string {
		b := []byte(s)
		if b[0] == 'a' {
			b[0] = 'b'
		} else {
			b[0] = 'a'
		}
		return string(b)
	}

	tests := []struct {
		name   string
		mutate func(e *models.EncryptedCredential)
	}{
		{
			name:   "tampered ciphertext",
			mutate: func(e *models.EncryptedCredential) { e.EncryptedData = flipHexChar(e.EncryptedData) },
		},
		{
			name:   "tampered tag",
			mutate: func(e *models.EncryptedCredential) { e.Tag = flipHexChar(e.Tag) },
		},
		{
			name:   "algorithm mismatch",
			mutate: func(e *models.EncryptedCredential) { e.Algorithm = "aes-128-cbc" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := *envelope
			tt.mutate(&mutated)

			_, err := c.Decrypt(&mutated)
			if err == nil {
				t.Fatal("Decrypt() succeeded on tampered envelope")
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("Decrypt() error is not classified: %v", err)
			}
			if appErr.Code != apperrors.CodeIntegrity && appErr.Code != apperrors.CodeAlgorithmMismatch {
				t.Errorf("error code = %s, want integrity class", appErr.Code)
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c1, _ := NewCipher(testKey(t), zap.NewNop())
	otherKey := testKey(t)
	otherKey[0] ^= 0xff
	c2, _ := NewCipher(otherKey, zap.NewNop())

	envelope, err := c1.Encrypt(testCredentialSet())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c2.Decrypt(envelope); err == nil {
		t.Fatal("Decrypt() with wrong key succeeded")
	}
}

func TestIVUniqueness(t *testing.T) {
	c, err := NewCipher(testKey(t), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	set := testCredentialSet()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		envelope, err := c.Encrypt(set)
		if err != nil {
			t.Fatal(err)
		}
		if seen[envelope.IV] {
			t.Fatalf("IV %s repeated after %d encryptions", envelope.IV, i)
		}
		seen[envelope.IV] = true
	}
}

func TestResolveKey(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{
			name:   "base64 key",
			secret: "Y2hhbmdlIHRoaXMgcGFzc3dvcmQgdG8gYSBzZWNyZXQ=",
		},
		{
			name:   "hex key",
			secret: "6368616e676520746869732070617373776f726420746f206120736563726574",
		},
		{
			name:   "passphrase via scrypt",
			secret: "correct horse battery staple",
		},
		{
			name:    "empty secret",
			secret:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ResolveKey(tt.secret, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("ResolveKey() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveKey() error = %v", err)
			}
			if len(key) != 32 {
				t.Errorf("key length = %d, want 32", len(key))
			}
		})
	}
}

func TestResolveKeyDeterministicDerivation(t *testing.T) {
	k1, err := ResolveKey("same passphrase", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	k2, err := ResolveKey("same passphrase", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(k1, k2) {
		t.Error("scrypt derivation is not deterministic for the same passphrase")
	}
}

func TestMaskCredentials(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "long secret masked",
			in:   map[string]any{"key_secret": "abcdefghij"},
			want: map[string]any{"key_secret": "abcd***ghij"},
		},
		{
			name: "short secret untouched",
			in:   map[string]any{"key_secret": "short"},
			want: map[string]any{"key_secret": "short"},
		},
		{
			name: "salt masked",
			in:   map[string]any{"merchant_salt": "0123456789abcdef"},
			want: map[string]any{"merchant_salt": "0123***cdef"},
		},
		{
			name: "non-secret untouched",
			in:   map[string]any{"enabled": true, "mode": "live"},
			want: map[string]any{"enabled": true, "mode": "live"},
		},
		{
			name: "nested maps walked",
			in: map[string]any{
				"razorpay": map[string]any{
					"key_id":     "rzp_live_abc",
					"key_secret": "verysecretvalue",
					"enabled":    true,
				},
			},
			want: map[string]any{
				"razorpay": map[string]any{
					"key_id":     "rzp_***_abc",
					"key_secret": "very***alue",
					"enabled":    true,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskCredentials(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MaskCredentials() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
