// walletctl operates on a local wallet record store: enroll wallets, sign,
// derive child public keys, rotate credentials, check recovery shares and
// export keypairs.
//
// Configuration comes from WALLET_* environment variables. Credentials are
// prompted for on the terminal, or read from WALLETCTL_CREDENTIAL and
// WALLETCTL_NEW_CREDENTIAL when set. Passkey PRF outputs are given in hex.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/urfave/cli/v2"

	"github.com/Caqil/solana-share-signer/internal/config"
	"github.com/Caqil/solana-share-signer/internal/security"
	"github.com/Caqil/solana-share-signer/pkg/crypto/kdf"
	"github.com/Caqil/solana-share-signer/pkg/logger"
	"github.com/Caqil/solana-share-signer/pkg/storage"
	"github.com/Caqil/solana-share-signer/pkg/wallet"
)

const (
	envCredential    = "WALLETCTL_CREDENTIAL"
	envNewCredential = "WALLETCTL_NEW_CREDENTIAL"
)

var (
	errRecoveryMismatch = errors.New("recovery share does not match")
	errIndexRange       = errors.New("derivation index out of range")
)

var flagStoreDir *cli.StringFlag = &cli.StringFlag{
	Name:  "store-dir",
	Usage: "Directory holding wallet records (overrides WALLET_STORE_DIR)",
}
var flagPubkey *cli.StringFlag = &cli.StringFlag{
	Name:     "pubkey",
	Usage:    "Base58 public key of the wallet",
	Required: true,
}
var flagUser *cli.StringFlag = &cli.StringFlag{
	Name:     "user",
	Usage:    "Owner user id (uuid)",
	Required: true,
}
var flagAPIKey *cli.StringFlag = &cli.StringFlag{
	Name:  "api-key",
	Usage: "Scope the wallet to this API key id (uuid); omit for the default wallet",
}
var flagMethod *cli.StringFlag = &cli.StringFlag{
	Name:  "method",
	Value: "password",
	Usage: "Auth method protecting Share A: password, pin, passkey or api_key",
}
var flagPRFSalt *cli.StringFlag = &cli.StringFlag{
	Name:  "prf-salt",
	Usage: "Hex salt the passkey PRF was evaluated with (passkey only)",
}
var flagIndex *cli.UintFlag = &cli.UintFlag{
	Name:  "index",
	Value: 0,
	Usage: "Derivation index; 0 is the master wallet",
}
var flagMessage *cli.StringFlag = &cli.StringFlag{
	Name:  "message",
	Usage: "Message to sign",
}
var flagMessageHex *cli.StringFlag = &cli.StringFlag{
	Name:  "message-hex",
	Usage: "Message to sign, hex encoded",
}
var flagShare *cli.StringFlag = &cli.StringFlag{
	Name:     "share",
	Usage:    "Recovery share, hex encoded",
	Required: true,
}
var flagFile *cli.StringFlag = &cli.StringFlag{
	Name:     "file",
	Usage:    "Backup file path",
	Required: true,
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletctl",
		Usage: "manage split-key Solana wallets",
		Flags: []cli.Flag{
			flagStoreDir,
		},
		Commands: []*cli.Command{
			{
				Name:  "enroll",
				Usage: "create a wallet and print its public key and recovery share",
				Flags: []cli.Flag{flagUser, flagAPIKey, flagMethod, flagPRFSalt},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					userID, err := uuid.Parse(cCtx.String(flagUser.Name))
					if err != nil {
						return fmt.Errorf("invalid --user: %w", err)
					}
					var apiKeyID *uuid.UUID
					if s := cCtx.String(flagAPIKey.Name); s != "" {
						id, err := uuid.Parse(s)
						if err != nil {
							return fmt.Errorf("invalid --api-key: %w", err)
						}
						apiKeyID = &id
					}

					method, err := wallet.ParseAuthMethod(cCtx.String(flagMethod.Name))
					if err != nil {
						return err
					}
					opts, err := keyOptions(cCtx, env.cfg)
					if err != nil {
						return err
					}

					cred, err := readCredential(method, "New credential: ", envCredential)
					if err != nil {
						return err
					}
					defer cred.Wipe()

					enr, err := env.signer.Enroll(cCtx.Context, wallet.EnrollRequest{
						UserID:     userID,
						APIKeyID:   apiKeyID,
						Credential: cred,
						KeyOptions: opts,
					})
					if err != nil {
						return err
					}
					defer enr.RecoveryShare.Destroy()

					if err := env.store.Create(cCtx.Context, enr.Record); err != nil {
						return err
					}

					fmt.Fprintf(cCtx.App.Writer, "pubkey: %s\n", enr.Record.SolanaPubkey)
					fmt.Fprintf(cCtx.App.Writer, "recovery share: %s\n", hex.EncodeToString(enr.RecoveryShare.Bytes()))
					return nil
				},
			},
			{
				Name:  "sign",
				Usage: "sign a message and print the base58 signature",
				Flags: []cli.Flag{flagPubkey, flagIndex, flagMessage, flagMessageHex},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					message, err := messageArg(cCtx)
					if err != nil {
						return err
					}
					index, err := indexArg(cCtx)
					if err != nil {
						return err
					}

					return env.withKey(cCtx, func(rec wallet.WalletRecord, key []byte) error {
						sig, err := env.signer.SignWithCachedKey(cCtx.Context, rec, key, message, index)
						if err != nil {
							return err
						}
						fmt.Fprintln(cCtx.App.Writer, sig.String())
						return nil
					})
				},
			},
			{
				Name:  "pubkey",
				Usage: "print the public key of the wallet at --index",
				Flags: []cli.Flag{flagPubkey, flagIndex},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					index, err := indexArg(cCtx)
					if err != nil {
						return err
					}

					return env.withKey(cCtx, func(rec wallet.WalletRecord, key []byte) error {
						pub, err := env.signer.DerivePubkeyForIndex(cCtx.Context, rec, key, index)
						if err != nil {
							return err
						}
						fmt.Fprintln(cCtx.App.Writer, pub.String())
						return nil
					})
				},
			},
			{
				Name:  "rotate",
				Usage: "re-encrypt Share A under a new credential of the same method",
				Flags: []cli.Flag{flagPubkey},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}
					pubkey := cCtx.String(flagPubkey.Name)

					return env.store.ApplyRotation(cCtx.Context, pubkey, func(rec wallet.WalletRecord) (wallet.WalletRecord, error) {
						oldCred, err := readCredential(rec.ShareAAuthMethod, "Current credential: ", envCredential)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						defer oldCred.Wipe()

						newCred, err := readCredential(rec.ShareAAuthMethod, "New credential: ", envNewCredential)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						defer newCred.Wipe()

						res, err := env.signer.RotateCredential(cCtx.Context, rec, oldCred, newCred)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						return res.Apply(rec), nil
					})
				},
			},
			{
				Name:  "change-method",
				Usage: "re-encrypt Share A under a credential of another auth method",
				Flags: []cli.Flag{flagPubkey, flagMethod, flagPRFSalt},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					method, err := wallet.ParseAuthMethod(cCtx.String(flagMethod.Name))
					if err != nil {
						return err
					}
					opts, err := keyOptions(cCtx, env.cfg)
					if err != nil {
						return err
					}

					return env.store.ApplyRotation(cCtx.Context, cCtx.String(flagPubkey.Name), func(rec wallet.WalletRecord) (wallet.WalletRecord, error) {
						oldCred, err := readCredential(rec.ShareAAuthMethod, "Current credential: ", envCredential)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						defer oldCred.Wipe()

						newCred, err := readCredential(method, "New credential: ", envNewCredential)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						defer newCred.Wipe()

						upd, err := env.signer.ChangeAuthMethod(cCtx.Context, rec, oldCred, newCred, opts)
						if err != nil {
							return wallet.WalletRecord{}, err
						}
						return upd.Apply(rec), nil
					})
				},
			},
			{
				Name:  "verify-recovery",
				Usage: "check that a recovery share belongs to the wallet",
				Flags: []cli.Flag{flagPubkey, flagShare},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					share, err := hex.DecodeString(cCtx.String(flagShare.Name))
					if err != nil {
						return fmt.Errorf("invalid --share: %w", err)
					}
					defer security.SecureZero(share)

					rec, err := env.store.ByPubkey(cCtx.Context, cCtx.String(flagPubkey.Name))
					if err != nil {
						return err
					}

					ok, err := env.signer.VerifyRecoveryShare(cCtx.Context, rec, share)
					if err != nil {
						return err
					}
					if !ok {
						return errRecoveryMismatch
					}
					fmt.Fprintln(cCtx.App.Writer, "recovery share matches")
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "print the 64-byte keypair in base58",
				Flags: []cli.Flag{flagPubkey},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}

					return env.withKey(cCtx, func(rec wallet.WalletRecord, key []byte) error {
						return env.signer.ReconstructPrivateKeyMaterial(cCtx.Context, rec, key, func(keypair []byte) error {
							fmt.Fprintln(cCtx.App.Writer, base58.Encode(keypair))
							return nil
						})
					})
				},
			},
			{
				Name:  "backup",
				Usage: "copy a wallet record to --file",
				Flags: []cli.Flag{flagPubkey, flagFile},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}
					return env.store.Backup(cCtx.Context, cCtx.String(flagPubkey.Name), cCtx.String(flagFile.Name))
				},
			},
			{
				Name:  "restore",
				Usage: "add the wallet record in --file to the store",
				Flags: []cli.Flag{flagFile},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}
					rec, err := env.store.Restore(cCtx.Context, cCtx.String(flagFile.Name))
					if err != nil {
						return err
					}
					fmt.Fprintf(cCtx.App.Writer, "restored %s\n", rec.SolanaPubkey)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "overwrite and remove a wallet record",
				Flags: []cli.Flag{flagPubkey},
				Action: func(cCtx *cli.Context) error {
					env, err := setup(cCtx)
					if err != nil {
						return err
					}
					return env.store.Delete(cCtx.Context, cCtx.String(flagPubkey.Name))
				},
			},
		},
	}
}

type environment struct {
	cfg    *config.Config
	signer *wallet.Signer
	store  *storage.FileStore
}

func setup(cCtx *cli.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dir := cCtx.String(flagStoreDir.Name); dir != "" {
		cfg.StoreDir = dir
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(storage.DefaultStorageConfig(cfg.StoreDir))
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		signer: wallet.NewSigner(kdf.NewPool(cfg.KDFWorkers), wallet.WithLogger(log)),
		store:  store,
	}, nil
}

// withKey derives the Share A key for --pubkey and runs fn while the record
// is held against concurrent rotation
func (e *environment) withKey(cCtx *cli.Context, fn func(rec wallet.WalletRecord, key []byte) error) error {
	return e.store.View(cCtx.Context, cCtx.String(flagPubkey.Name), func(rec wallet.WalletRecord) error {
		cred, err := readCredential(rec.ShareAAuthMethod, "Credential: ", envCredential)
		if err != nil {
			return err
		}
		defer cred.Wipe()

		key, err := e.signer.DeriveKey(cCtx.Context, rec, cred)
		if err != nil {
			return err
		}
		defer key.Destroy()

		return fn(rec, key.Bytes())
	})
}

func readCredential(method wallet.AuthMethod, prompt, envVar string) (wallet.Credential, error) {
	raw, err := config.ReadCredential(prompt, envVar)
	if err != nil {
		return nil, err
	}

	if method == wallet.AuthMethodPasskey {
		decoded, err := hex.DecodeString(string(raw))
		security.SecureZero(raw)
		if err != nil {
			return nil, fmt.Errorf("passkey PRF output must be hex: %w", err)
		}
		raw = decoded
	}

	return wallet.NewCredential(method, raw)
}

func keyOptions(cCtx *cli.Context, cfg *config.Config) (wallet.KeyOptions, error) {
	opts := wallet.KeyOptions{Argon2: cfg.Argon2Params()}
	if s := cCtx.String(flagPRFSalt.Name); s != "" {
		salt, err := hex.DecodeString(s)
		if err != nil {
			return wallet.KeyOptions{}, fmt.Errorf("invalid --prf-salt: %w", err)
		}
		opts.PRFSalt = salt
	}
	return opts, nil
}

// indexArg returns --index, which must fit a uint32 derivation index
func indexArg(cCtx *cli.Context) (uint32, error) {
	index := cCtx.Uint(flagIndex.Name)
	if uint64(index) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: --%s %d exceeds %d", errIndexRange, flagIndex.Name, index, uint32(math.MaxUint32))
	}
	return uint32(index), nil
}

func messageArg(cCtx *cli.Context) ([]byte, error) {
	if h := cCtx.String(flagMessageHex.Name); h != "" {
		return hex.DecodeString(h)
	}
	if m := cCtx.String(flagMessage.Name); m != "" {
		return []byte(m), nil
	}
	return nil, fmt.Errorf("one of --%s or --%s is required", flagMessage.Name, flagMessageHex.Name)
}
