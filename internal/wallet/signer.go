package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
)

// Backend identifies a signing integration path.
type Backend string

const (
	BackendExtension     Backend = "extension"
	BackendMobileAdapter Backend = "mobile-adapter"
	BackendRawKeypair    Backend = "raw-keypair"
)

// Signer errors.
var (
	ErrNotAuthorized  = errors.New("signer not authorized")
	ErrUnknownAccount = errors.New("unknown signing account")
)

// Signer abstracts the three signing backends behind one capability:
// authorize once, then sign message bytes on behalf of an authorized account.
type Signer interface {
	// Backend names the integration path this signer implements.
	Backend() Backend

	// Authorize performs the backend handshake and returns the accounts it
	// is willing to sign for, in selection order.
	Authorize(ctx context.Context) ([]Account, error)

	// Sign produces an ed25519 signature over message for the account with
	// the given address. The account must come from Authorize.
	Sign(ctx context.Context, address string, message []byte) ([]byte, error)

	// Close releases backend resources. Safe to call more than once.
	Close() error
}

// SigningTransport is the out-of-process half of the extension and
// mobile-adapter backends: a browser extension handshake or a mobile wallet
// app reached over its own channel. Implementations live with the host
// integration; this package only drives the protocol.
type SigningTransport interface {
	RequestAuthorization(ctx context.Context) ([]string, error)
	SignMessage(ctx context.Context, address string, message []byte) ([]byte, error)
	Disconnect() error
}

// ExtensionSigner delegates signing to a browser-extension wallet. The
// extension holds the keys; we only see addresses and signatures.
type ExtensionSigner struct {
	transport  SigningTransport
	authorized map[string]bool
}

// NewExtensionSigner wraps an extension transport.
func NewExtensionSigner(transport SigningTransport) *ExtensionSigner {
	return &ExtensionSigner{transport: transport, authorized: make(map[string]bool)}
}

func (s *ExtensionSigner) Backend() Backend { return BackendExtension }

func (s *ExtensionSigner) Authorize(ctx context.Context) ([]Account, error) {
	addresses, err := s.transport.RequestAuthorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("extension handshake: %w", err)
	}
	return s.collect(addresses)
}

func (s *ExtensionSigner) Sign(ctx context.Context, address string, message []byte) ([]byte, error) {
	if !s.authorized[address] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	sig, err := s.transport.SignMessage(ctx, address, message)
	if err != nil {
		return nil, fmt.Errorf("extension signing: %w", err)
	}
	return sig, nil
}

func (s *ExtensionSigner) Close() error {
	s.authorized = make(map[string]bool)
	return s.transport.Disconnect()
}

func (s *ExtensionSigner) collect(addresses []string) ([]Account, error) {
	if len(addresses) == 0 {
		return nil, ErrNotAuthorized
	}
	accounts := make([]Account, 0, len(addresses))
	for _, addr := range addresses {
		pub, err := DecodeAddress(addr)
		if err != nil {
			return nil, err
		}
		s.authorized[addr] = true
		accounts = append(accounts, Account{Address: addr, PublicKey: pub})
	}
	return accounts, nil
}

// MobileAdapterSigner delegates to a wallet app through a mobile adapter
// session. Unlike the extension path, the adapter may drop authorization
// between operations, so every Sign re-checks it with the remote side.
type MobileAdapterSigner struct {
	transport  SigningTransport
	authorized map[string]bool
}

// NewMobileAdapterSigner wraps a mobile adapter transport.
func NewMobileAdapterSigner(transport SigningTransport) *MobileAdapterSigner {
	return &MobileAdapterSigner{transport: transport, authorized: make(map[string]bool)}
}

func (s *MobileAdapterSigner) Backend() Backend { return BackendMobileAdapter }

func (s *MobileAdapterSigner) Authorize(ctx context.Context) ([]Account, error) {
	addresses, err := s.transport.RequestAuthorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("mobile adapter authorization: %w", err)
	}
	if len(addresses) == 0 {
		return nil, ErrNotAuthorized
	}
	accounts := make([]Account, 0, len(addresses))
	for _, addr := range addresses {
		pub, err := DecodeAddress(addr)
		if err != nil {
			return nil, err
		}
		s.authorized[addr] = true
		accounts = append(accounts, Account{Address: addr, PublicKey: pub})
	}
	return accounts, nil
}

func (s *MobileAdapterSigner) Sign(ctx context.Context, address string, message []byte) ([]byte, error) {
	if !s.authorized[address] {
		// The adapter session may have been torn down out from under us;
		// re-authorize rather than failing outright.
		if _, err := s.Authorize(ctx); err != nil {
			return nil, err
		}
		if !s.authorized[address] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
		}
	}
	sig, err := s.transport.SignMessage(ctx, address, message)
	if err != nil {
		return nil, fmt.Errorf("mobile adapter signing: %w", err)
	}
	return sig, nil
}

func (s *MobileAdapterSigner) Close() error {
	s.authorized = make(map[string]bool)
	return s.transport.Disconnect()
}

// KeypairSigner signs in-process with an ed25519 key derived from a
// user-supplied base58 or base64 secret.
type KeypairSigner struct {
	key     ed25519.PrivateKey
	address string
}

// NewKeypairSigner derives the keypair from the secret.
func NewKeypairSigner(secret string) (*KeypairSigner, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return nil, err
	}
	pub := key.Public().(ed25519.PublicKey)
	return &KeypairSigner{key: key, address: EncodeAddress(pub)}, nil
}

func (s *KeypairSigner) Backend() Backend { return BackendRawKeypair }

func (s *KeypairSigner) Authorize(_ context.Context) ([]Account, error) {
	return []Account{{Address: s.address, PublicKey: s.key.Public().(ed25519.PublicKey)}}, nil
}

func (s *KeypairSigner) Sign(_ context.Context, address string, message []byte) ([]byte, error) {
	if address != s.address {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	return ed25519.Sign(s.key, message), nil
}

func (s *KeypairSigner) Close() error {
	// Zero the key material; the signer is unusable afterwards.
	for i := range s.key {
		s.key[i] = 0
	}
	return nil
}
