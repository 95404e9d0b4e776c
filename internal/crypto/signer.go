package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)

	// Envelope(string action,bytes32 payloadHash,uint256 nonce,uint256 timestamp)
	envelopeTypeHash = ethcrypto.Keccak256(
		[]byte("Envelope(string action,bytes32 payloadHash,uint256 nonce,uint256 timestamp)"),
	)

	// Receipt(string txId,uint256 seq,address sender,bytes32 bodyHash)
	receiptTypeHash = ethcrypto.Keccak256(
		[]byte("Receipt(string txId,uint256 seq,address sender,bytes32 bodyHash)"),
	)
)

const (
	domainName    = "tiqet"
	domainVersion = "1"
)

// Envelope is a signed request to execute one protocol action. The sender is
// whoever signed it.
type Envelope struct {
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
}

// Signer signs envelopes and receipts under the tiqet EIP-712 domain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int
	domainSep  []byte // cached EIP-712 domain separator hash
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and the
// chain id the domain separator commits to.
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		domainSep:  buildDomainSeparator(domainName, domainVersion, chainID),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignEnvelope signs env and returns the hex-encoded 65-byte signature.
func (s *Signer) SignEnvelope(env Envelope) (string, error) {
	return s.signDigest(eip712Hash(s.domainSep, envelopeStructHash(env)))
}

// SignReceipt signs the receipt body and returns the hex-encoded signature.
func (s *Signer) SignReceipt(r domain.Receipt) (string, error) {
	h, err := receiptStructHash(r)
	if err != nil {
		return "", err
	}
	return s.signDigest(eip712Hash(s.domainSep, h))
}

// Verifier recovers signers under the tiqet domain for a given chain id.
type Verifier struct {
	domainSep []byte
}

// NewVerifier builds a verifier for chainID.
func NewVerifier(chainID int) *Verifier {
	return &Verifier{domainSep: buildDomainSeparator(domainName, domainVersion, chainID)}
}

// EnvelopeSender recovers the address that signed env.
func (v *Verifier) EnvelopeSender(env Envelope) (common.Address, error) {
	return recoverSigner(eip712Hash(v.domainSep, envelopeStructHash(env)), env.Signature)
}

// ReceiptSigner recovers the node address that signed r.
func (v *Verifier) ReceiptSigner(r domain.Receipt) (common.Address, error) {
	h, err := receiptStructHash(r)
	if err != nil {
		return common.Address{}, err
	}
	return recoverSigner(eip712Hash(v.domainSep, h), r.Signature)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func envelopeStructHash(env Envelope) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			envelopeTypeHash,
			ethcrypto.Keccak256([]byte(env.Action)),
			ethcrypto.Keccak256(env.Payload),
			bigIntTo32Bytes(new(big.Int).SetUint64(env.Nonce)),
			bigIntTo32Bytes(big.NewInt(env.Timestamp)),
		),
	)
}

func receiptStructHash(r domain.Receipt) ([]byte, error) {
	body, err := r.SigningBody()
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: encode receipt: %w", err)
	}
	return ethcrypto.Keccak256(
		concatBytes(
			receiptTypeHash,
			ethcrypto.Keccak256([]byte(r.TxID)),
			bigIntTo32Bytes(big.NewInt(r.Seq)),
			common.LeftPadBytes(r.Sender.Bytes(), 32),
			ethcrypto.Keccak256(body),
		),
	), nil
}

// buildDomainSeparator returns keccak256(abi.encode(typeHash, nameHash, versionHash, chainId)).
func buildDomainSeparator(name, version string, chainID int) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(name)),
			ethcrypto.Keccak256([]byte(version)),
			bigIntTo32Bytes(big.NewInt(int64(chainID))),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the
// hex-encoded signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	// go-ethereum returns v in {0,1}; wallets produce v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return "0x" + hex.EncodeToString(sig), nil
}

// recoverSigner is the inverse of signDigest. It accepts v in {0,1,27,28}.
func recoverSigner(digest []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: malformed signature", domain.ErrBadSignature)
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
