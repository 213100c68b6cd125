package wallet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caqil/solana-share-signer/pkg/crypto/aead"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/logger"
	"github.com/Caqil/solana-share-signer/pkg/metrics"
	"github.com/Caqil/solana-share-signer/pkg/shamir"
	"github.com/Caqil/solana-share-signer/pkg/signing"
)

// testParams is the cheapest accepted Argon2 cost
var testParams = kdf.Argon2Params{Memory: kdf.MinArgon2Memory, Time: 1, Parallelism: 1}

func newTestSigner(opts ...Option) *Signer {
	return NewSigner(kdf.NewPool(2), opts...)
}

func fixedSeed(label string) []byte {
	sum := sha256.Sum256([]byte(label))
	return sum[:]
}

// buildPasswordRecord assembles a record by hand from a known seed, password
// and salt, without going through Enroll
func buildPasswordRecord(t *testing.T, seed, password, salt []byte) (WalletRecord, shamir.Share) {
	t.Helper()

	shares, err := shamir.Split(seed, 2, []byte{IndexShareA, IndexShareB, IndexRecovery})
	require.NoError(t, err)

	shareA, err := shares[0].Encode()
	require.NoError(t, err)
	shareB, err := shares[1].Encode()
	require.NoError(t, err)

	key, err := kdf.Argon2id(password, salt, testParams)
	require.NoError(t, err)

	sealed, err := aead.Seal(key, shareA)
	require.NoError(t, err)

	pub, err := signing.PublicKey(seed)
	require.NoError(t, err)

	params := testParams
	return WalletRecord{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		SolanaPubkey:     pub.String(),
		SchemeVersion:    SchemeVersion,
		ShareAAuthMethod: AuthMethodPassword,
		ShareACiphertext: sealed.Ciphertext,
		ShareANonce:      sealed.Nonce,
		ShareAKDFSalt:    salt,
		ShareAKDFParams:  &params,
		ShareB:           shareB,
	}, shares[2]
}

func enroll(t *testing.T, s *Signer, cred Credential, opts KeyOptions) *Enrollment {
	t.Helper()
	if opts.Argon2 == (kdf.Argon2Params{}) {
		opts.Argon2 = testParams
	}
	enr, err := s.Enroll(context.Background(), EnrollRequest{
		UserID:     uuid.New(),
		Credential: cred,
		KeyOptions: opts,
	})
	require.NoError(t, err)
	t.Cleanup(enr.RecoveryShare.Destroy)
	return enr
}

func TestSignWithCredentialEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()

	seed := fixedSeed("end-to-end")
	salt := bytes.Repeat([]byte{0x5a}, 16)
	rec, _ := buildPasswordRecord(t, seed, []byte("correct horse"), salt)

	msg := []byte("test message")
	sig, err := s.SignWithCredential(ctx, rec, Password("correct horse"), msg)
	require.NoError(t, err)

	pub := solana.MustPublicKeyFromBase58(rec.SolanaPubkey)
	assert.True(t, sig.Verify(pub, msg), "signature must verify against the wallet key")

	// identical to signing with the seed directly
	direct, err := signing.Sign(seed, msg)
	require.NoError(t, err)
	assert.Equal(t, direct, sig)

	sig, err = s.SignWithCredential(ctx, rec, Password("wrong horse"), msg)
	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrInternal)
	assert.Equal(t, solana.Signature{}, sig, "no signature on failure")
}

func TestDeriveKeyDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Pin("1234"), KeyOptions{})

	k1, err := s.DeriveKey(ctx, enr.Record, Pin("1234"))
	require.NoError(t, err)
	defer k1.Destroy()
	k2, err := s.DeriveKey(ctx, enr.Record, Pin("1234"))
	require.NoError(t, err)
	defer k2.Destroy()

	assert.Equal(t, kdf.KeySize, k1.Len())
	assert.Equal(t, k1.Bytes(), k2.Bytes())

	msg := []byte("same message")
	sig1, err := s.SignWithCachedKey(ctx, enr.Record, k1.Bytes(), msg, 0)
	require.NoError(t, err)
	sig2, err := s.SignWithCachedKey(ctx, enr.Record, k2.Bytes(), msg, 0)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
}

func TestCredentialMethodMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()

	passkey := enroll(t, s, PrfOutput(fixedSeed("prf")), KeyOptions{PRFSalt: []byte("prf-salt")})
	password := enroll(t, s, Password("pw"), KeyOptions{})

	tests := []struct {
		name string
		rec  WalletRecord
		cred Credential
	}{
		{"password on passkey record", passkey.Record, Password("pw")},
		{"pin on password record", password.Record, Pin("pw")},
		{"api key on password record", password.Record, APIKey("pw")},
		{"prf output on password record", password.Record, PrfOutput(fixedSeed("prf"))},
		{"nil credential", password.Record, nil},
		{"empty credential", password.Record, Password{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SignWithCredential(ctx, tt.rec, tt.cred, []byte("m"))
			require.ErrorIs(t, err, ErrValidation)
			assert.NotErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestPasskeySign(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()

	prf := PrfOutput(fixedSeed("authenticator"))
	enr := enroll(t, s, prf, KeyOptions{PRFSalt: []byte("credential-salt")})
	assert.Equal(t, AuthMethodPasskey, enr.Record.ShareAAuthMethod)
	assert.Nil(t, enr.Record.ShareAKDFParams)
	assert.Empty(t, enr.Record.ShareAKDFSalt)

	msg := []byte("passkey message")
	sig, err := s.SignWithCredential(ctx, enr.Record, prf, msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(solana.MustPublicKeyFromBase58(enr.Record.SolanaPubkey), msg))

	_, err = s.SignWithCredential(ctx, enr.Record, PrfOutput(fixedSeed("other")), msg)
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestHierarchicalWallets(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	key, err := s.DeriveKey(ctx, enr.Record, Password("pw"))
	require.NoError(t, err)
	defer key.Destroy()

	master, err := s.DerivePubkeyForIndex(ctx, enr.Record, key.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, enr.Record.SolanaPubkey, master.String(), "index 0 is the record's own key")

	seen := map[solana.PublicKey]uint32{master: 0}
	msg := []byte("child message")
	for _, index := range []uint32{1, 2, 7, 1 << 20} {
		pub, err := s.DerivePubkeyForIndex(ctx, enr.Record, key.Bytes(), index)
		require.NoError(t, err)

		prev, dup := seen[pub]
		require.False(t, dup, "index %d collides with index %d", index, prev)
		seen[pub] = index

		sig, err := s.SignWithCachedKey(ctx, enr.Record, key.Bytes(), msg, index)
		require.NoError(t, err)
		assert.True(t, sig.Verify(pub, msg), "index %d signature must verify against its pubkey", index)
		assert.False(t, sig.Verify(master, msg))
	}

	sig, err := s.SignWithCachedKey(ctx, enr.Record, key.Bytes(), msg, 0)
	require.NoError(t, err)
	assert.True(t, sig.Verify(master, msg))
}

func TestCachedKeyErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	_, err := s.SignWithCachedKey(ctx, enr.Record, make([]byte, 16), []byte("m"), 0)
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = s.SignWithCachedKey(ctx, enr.Record, fixedSeed("not the key"), []byte("m"), 0)
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = s.DerivePubkeyForIndex(ctx, enr.Record, fixedSeed("not the key"), 3)
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestTamperedCiphertextLooksLikeWrongCredential(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	tampered := enr.Record.Clone()
	tampered.ShareACiphertext[0] ^= 0x01

	_, tamperErr := s.SignWithCredential(ctx, tampered, Password("pw"), []byte("m"))
	_, wrongErr := s.SignWithCredential(ctx, enr.Record, Password("wrong"), []byte("m"))

	require.ErrorIs(t, tamperErr, ErrInvalidCredential)
	require.ErrorIs(t, wrongErr, ErrInvalidCredential)
	assert.Equal(t, tamperErr.Error(), wrongErr.Error())
}

func TestCorruptShareBIsInternal(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	corrupt := enr.Record.Clone()
	corrupt.ShareB[5] ^= 0xFF

	_, err := s.SignWithCredential(ctx, corrupt, Password("pw"), []byte("m"))
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, ErrPubkeyMismatch)

	// same index as Share A
	dup := enr.Record.Clone()
	dup.ShareB[1] = IndexShareA
	_, err = s.SignWithCredential(ctx, dup, Password("pw"), []byte("m"))
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, shamir.ErrDuplicateIndex)
}

func TestReconstructPrivateKeyMaterial(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, APIKey("sk_live_abc"), KeyOptions{})

	key, err := s.DeriveKey(ctx, enr.Record, APIKey("sk_live_abc"))
	require.NoError(t, err)
	defer key.Destroy()

	var leaked []byte
	err = s.ReconstructPrivateKeyMaterial(ctx, enr.Record, key.Bytes(), func(keypair []byte) error {
		require.Len(t, keypair, signing.KeypairSize)
		assert.Equal(t, enr.Record.SolanaPubkey, solana.PrivateKey(keypair).PublicKey().String())
		leaked = keypair
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, signing.KeypairSize), leaked, "keypair must be zeroed after the callback")

	err = s.ReconstructPrivateKeyMaterial(ctx, enr.Record, fixedSeed("wrong"), func([]byte) error {
		t.Fatal("callback must not run on failure")
		return nil
	})
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestRotateCredential(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("old password"), KeyOptions{})
	original := enr.Record.Clone()

	res, err := s.RotateCredential(ctx, enr.Record, Password("old password"), Password("new password"))
	require.NoError(t, err)
	assert.Equal(t, original, enr.Record, "rotation must not modify the input record")
	assert.NotEqual(t, original.ShareANonce, res.Nonce)
	assert.NotEqual(t, original.ShareAKDFSalt, res.Salt)

	rotated := res.Apply(enr.Record)
	require.NoError(t, rotated.Validate())
	assert.Equal(t, original.ShareAKDFParams, rotated.ShareAKDFParams, "cost parameters are kept")

	msg := []byte("after rotation")
	sig, err := s.SignWithCredential(ctx, rotated, Password("new password"), msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(solana.MustPublicKeyFromBase58(rotated.SolanaPubkey), msg))

	_, err = s.SignWithCredential(ctx, rotated, Password("old password"), msg)
	require.ErrorIs(t, err, ErrInvalidCredential)

	// new ciphertext under the old salt and old credential
	mixed := rotated.Clone()
	mixed.ShareAKDFSalt = original.ShareAKDFSalt
	_, err = s.SignWithCredential(ctx, mixed, Password("old password"), msg)
	require.ErrorIs(t, err, ErrInvalidCredential)

	// the plaintext share is unchanged, so both records reconstruct the same key
	oldKey, err := s.DeriveKey(ctx, original, Password("old password"))
	require.NoError(t, err)
	defer oldKey.Destroy()
	newKey, err := s.DeriveKey(ctx, rotated, Password("new password"))
	require.NoError(t, err)
	defer newKey.Destroy()

	oldPub, err := s.DerivePubkeyForIndex(ctx, original, oldKey.Bytes(), 5)
	require.NoError(t, err)
	newPub, err := s.DerivePubkeyForIndex(ctx, rotated, newKey.Bytes(), 5)
	require.NoError(t, err)
	assert.Equal(t, oldPub, newPub)
}

func TestRotateCredentialRejections(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	password := enroll(t, s, Password("pw"), KeyOptions{})
	passkey := enroll(t, s, PrfOutput(fixedSeed("prf")), KeyOptions{PRFSalt: []byte("salt")})

	_, err := s.RotateCredential(ctx, password.Record, Password("pw"), Pin("1234"))
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, ErrMethodMismatch)

	_, err = s.RotateCredential(ctx, password.Record, Pin("pw"), Password("new"))
	require.ErrorIs(t, err, ErrMethodMismatch)

	_, err = s.RotateCredential(ctx, passkey.Record, PrfOutput(fixedSeed("prf")), PrfOutput(fixedSeed("new")))
	require.ErrorIs(t, err, ErrRotationUnsupported)

	_, err = s.RotateCredential(ctx, password.Record, Password("wrong"), Password("new"))
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestChangeAuthMethod(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	prf := PrfOutput(fixedSeed("new authenticator"))
	upd, err := s.ChangeAuthMethod(ctx, enr.Record, Password("pw"), prf, KeyOptions{PRFSalt: []byte("prf-salt")})
	require.NoError(t, err)
	assert.Equal(t, AuthMethodPasskey, upd.Method)
	assert.Nil(t, upd.KDFParams)
	assert.Nil(t, upd.KDFSalt)

	rec := upd.Apply(enr.Record)
	require.NoError(t, rec.Validate())
	assert.Equal(t, enr.Record.SolanaPubkey, rec.SolanaPubkey)

	msg := []byte("after method change")
	sig, err := s.SignWithCredential(ctx, rec, prf, msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(solana.MustPublicKeyFromBase58(rec.SolanaPubkey), msg))

	_, err = s.SignWithCredential(ctx, rec, Password("pw"), msg)
	require.ErrorIs(t, err, ErrMethodMismatch)

	// and back to an Argon2 method with explicit cost
	upd, err = s.ChangeAuthMethod(ctx, rec, prf, Pin("9876"), KeyOptions{Argon2: testParams})
	require.NoError(t, err)
	rec = upd.Apply(rec)
	require.NoError(t, rec.Validate())
	assert.Empty(t, rec.PRFSalt)
	assert.Equal(t, testParams, *rec.ShareAKDFParams)

	_, err = s.SignWithCredential(ctx, rec, Pin("9876"), msg)
	require.NoError(t, err)

	_, err = s.ChangeAuthMethod(ctx, rec, Pin("9876"), PrfOutput(fixedSeed("x")), KeyOptions{})
	require.ErrorIs(t, err, ErrMissingPRFSalt)
}

func TestVerifyRecoveryShare(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	ok, err := s.VerifyRecoveryShare(ctx, enr.Record, enr.RecoveryShare.Bytes())
	require.NoError(t, err)
	assert.True(t, ok)

	for _, other := range [][]byte{fixedSeed("a"), fixedSeed("b"), make([]byte, 32)} {
		ok, err := s.VerifyRecoveryShare(ctx, enr.Record, other)
		require.NoError(t, err, "a wrong share is a result, not an error")
		assert.False(t, ok)
	}

	_, err = s.VerifyRecoveryShare(ctx, enr.Record, make([]byte, 31))
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.VerifyRecoveryShare(ctx, enr.Record, make([]byte, shamir.MaxShareSize))
	require.ErrorIs(t, err, shamir.ErrShareTooLarge)
}

func TestVerifyRecoveryShareHandBuilt(t *testing.T) {
	seed := fixedSeed("recovery")
	rec, recovery := buildPasswordRecord(t, seed, []byte("pw"), bytes.Repeat([]byte{1}, 32))
	require.Equal(t, IndexRecovery, recovery.Index)

	ok, err := newTestSigner().VerifyRecoveryShare(context.Background(), rec, recovery.Data)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanceledContext(t *testing.T) {
	s := newTestSigner()
	enr := enroll(t, s, Password("pw"), KeyOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SignWithCredential(ctx, enr.Record, Password("pw"), []byte("m"))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrValidation)

	_, err = s.Enroll(ctx, EnrollRequest{UserID: uuid.New(), Credential: Password("pw")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnrollValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestSigner()

	_, err := s.Enroll(ctx, EnrollRequest{Credential: Password("pw")})
	require.ErrorIs(t, err, ErrMissingUserID)

	_, err = s.Enroll(ctx, EnrollRequest{UserID: uuid.New()})
	require.ErrorIs(t, err, ErrEmptyCredential)

	_, err = s.Enroll(ctx, EnrollRequest{UserID: uuid.New(), Credential: PrfOutput(fixedSeed("x"))})
	require.ErrorIs(t, err, ErrMissingPRFSalt)

	_, err = s.Enroll(ctx, EnrollRequest{
		UserID:     uuid.New(),
		Credential: Password("pw"),
		KeyOptions: KeyOptions{Argon2: kdf.Argon2Params{Memory: 1, Time: 1, Parallelism: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, kdf.ErrInvalidMemory)
}

func TestEnrollRecordShape(t *testing.T) {
	s := newTestSigner()
	apiKey := uuid.New()
	enr, err := s.Enroll(context.Background(), EnrollRequest{
		UserID:     uuid.New(),
		APIKeyID:   &apiKey,
		Credential: APIKey("key"),
		KeyOptions: KeyOptions{Argon2: testParams},
	})
	require.NoError(t, err)
	defer enr.RecoveryShare.Destroy()

	rec := enr.Record
	require.NoError(t, rec.Validate())
	assert.False(t, rec.IsDefault())
	assert.Equal(t, AuthMethodAPIKey, rec.ShareAAuthMethod)
	assert.Len(t, rec.ShareANonce, aead.NonceSize)
	assert.Equal(t, 32, enr.RecoveryShare.Len())

	shareB, err := shamir.Decode(rec.ShareB)
	require.NoError(t, err)
	assert.Equal(t, IndexShareB, shareB.Index)
	assert.Equal(t, shamir.MarkerCanonical, rec.ShareB[0])
}

func TestRecordValidate(t *testing.T) {
	s := newTestSigner()
	password := enroll(t, s, Password("pw"), KeyOptions{}).Record
	passkey := enroll(t, s, PrfOutput(fixedSeed("p")), KeyOptions{PRFSalt: []byte("salt")}).Record

	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("wallet")}, solana.SystemProgramID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		base   WalletRecord
		mutate func(*WalletRecord)
		want   error
	}{
		{"scheme version", password, func(r *WalletRecord) { r.SchemeVersion = 1 }, ErrUnsupportedScheme},
		{"unknown method", password, func(r *WalletRecord) { r.ShareAAuthMethod = AuthMethodUnknown }, ErrUnknownAuthMethod},
		{"password without params", password, func(r *WalletRecord) { r.ShareAKDFParams = nil }, ErrKDFFields},
		{"password with short salt", password, func(r *WalletRecord) { r.ShareAKDFSalt = []byte("short") }, ErrKDFFields},
		{"password with prf salt", password, func(r *WalletRecord) { r.PRFSalt = []byte("x") }, ErrKDFFields},
		{"weak params", password, func(r *WalletRecord) { r.ShareAKDFParams = &kdf.Argon2Params{Memory: 1024, Time: 1, Parallelism: 1} }, kdf.ErrInvalidMemory},
		{"passkey without prf salt", passkey, func(r *WalletRecord) { r.PRFSalt = nil }, ErrMissingPRFSalt},
		{"passkey with kdf salt", passkey, func(r *WalletRecord) { r.ShareAKDFSalt = make([]byte, 32) }, ErrKDFFields},
		{"short nonce", password, func(r *WalletRecord) { r.ShareANonce = r.ShareANonce[:8] }, ErrInvalidNonce},
		{"empty ciphertext", password, func(r *WalletRecord) { r.ShareACiphertext = nil }, ErrEmptyCiphertext},
		{"bad share b marker", password, func(r *WalletRecord) { r.ShareB[0] = 0x42 }, shamir.ErrUnknownMarker},
		{"oversized share b", password, func(r *WalletRecord) { r.ShareB = make([]byte, 200) }, shamir.ErrShareTooLarge},
		{"bad pubkey", password, func(r *WalletRecord) { r.SolanaPubkey = "not a key" }, ErrInvalidPubkey},
		{"off-curve pubkey", password, func(r *WalletRecord) { r.SolanaPubkey = pda.String() }, ErrInvalidPubkey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.base.Clone()
			tt.mutate(&rec)
			err := rec.Validate()
			require.ErrorIs(t, err, ErrValidation)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordJSON(t *testing.T) {
	enr := enroll(t, newTestSigner(), Password("pw"), KeyOptions{})

	data, err := json.Marshal(enr.Record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"share_a_auth_method":"password"`)

	var decoded WalletRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, enr.Record.ShareB, decoded.ShareB)
	assert.Equal(t, *enr.Record.ShareAKDFParams, *decoded.ShareAKDFParams)
}

func TestAuthMethodParse(t *testing.T) {
	for m, name := range authMethodNames {
		parsed, err := ParseAuthMethod(name)
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseAuthMethod("totp")
	require.ErrorIs(t, err, ErrUnknownAuthMethod)

	cred, err := NewCredential(AuthMethodPin, []byte("1"))
	require.NoError(t, err)
	assert.Equal(t, AuthMethodPin, cred.Method())
}

func TestCredentialWipe(t *testing.T) {
	pw := Password("secret")
	pw.Wipe()
	assert.Equal(t, Password(make([]byte, 6)), pw)
}

func TestMetricsAndLogs(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	var logs bytes.Buffer
	log, err := logger.New(&logger.Config{Level: "debug", Output: &logs})
	require.NoError(t, err)

	s := newTestSigner(WithMetrics(metrics.New(reg)), WithLogger(log))
	enr := enroll(t, s, Password("hunter2-do-not-log"), KeyOptions{})

	_, err = s.SignWithCredential(ctx, enr.Record, Password("hunter2-do-not-log"), []byte("m"))
	require.NoError(t, err)
	_, err = s.SignWithCredential(ctx, enr.Record, Password("wrong-do-not-log"), []byte("m"))
	require.Error(t, err)

	// enroll/ok, sign/ok, sign/invalid_credential
	n, err := testutil.GatherAndCount(reg, "wallet_signer_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = testutil.GatherAndCount(reg, "wallet_signer_kdf_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	apiKeyID := uuid.New()
	scoped, err := s.Enroll(ctx, EnrollRequest{
		UserID:     uuid.New(),
		APIKeyID:   &apiKeyID,
		Credential: APIKey("sk-live-do-not-log"),
		KeyOptions: KeyOptions{Argon2: testParams},
	})
	require.NoError(t, err)
	defer scoped.RecoveryShare.Destroy()

	key, err := s.DeriveKey(ctx, scoped.Record, APIKey("sk-live-do-not-log"))
	require.NoError(t, err)
	defer key.Destroy()
	_, err = s.DerivePubkeyForIndex(ctx, scoped.Record, key.Bytes(), 7)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, enr.Record.ID.String())
	assert.Contains(t, out, `"op":"sign"`)
	assert.NotContains(t, out, "do-not-log")
	assert.NotContains(t, out, apiKeyID.String(), "api key ids are only logged redacted")

	var derive map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry[logger.FieldOp] == OpDerivePubkey {
			derive = entry
		}
		if entry[logger.FieldOp] == OpSign {
			assert.NotContains(t, entry, logger.FieldIndex)
			assert.NotContains(t, entry, logger.FieldAPIKeyID)
		}
		assert.Contains(t, entry, logger.FieldDuration)
	}
	require.NotNil(t, derive, "derive_pubkey must be logged")
	assert.Equal(t, float64(7), derive[logger.FieldIndex])
	assert.Equal(t, logger.Redact(apiKeyID.String()), derive[logger.FieldAPIKeyID])
	assert.Equal(t, scoped.Record.ID.String(), derive[logger.FieldRecordID])
}

func TestWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestSigner(WithRegisterer(reg))
	enr := enroll(t, s, Pin("1234"), KeyOptions{})

	_, err := s.SignWithCredential(context.Background(), enr.Record, Pin("1234"), []byte("m"))
	require.NoError(t, err)

	expected := `
		# HELP wallet_signer_kdf_inflight Argon2 derivations currently running on the worker pool
		# TYPE wallet_signer_kdf_inflight gauge
		wallet_signer_kdf_inflight 0
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wallet_signer_kdf_inflight"))

	n, err := testutil.GatherAndCount(reg, "wallet_signer_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
