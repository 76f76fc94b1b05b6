package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// System program constants for the native transfer instruction.
var systemProgramID = make([]byte, 32) // all zeros

const systemTransferIndex = 2 // instruction tag within the system program

// ErrBadTransfer is returned for structurally invalid transfer parameters.
var ErrBadTransfer = errors.New("invalid transfer")

// TransferMessage is an unsigned single-instruction system transfer. Build it
// with NewTransferMessage, sign the Serialize output, then assemble the wire
// transaction with SignedTransaction.
type TransferMessage struct {
	From            ed25519.PublicKey
	To              ed25519.PublicKey
	Lamports        uint64
	RecentBlockhash []byte
}

// NewTransferMessage validates addresses and builds an unsigned transfer.
func NewTransferMessage(from, to string, lamports uint64, recentBlockhash string) (*TransferMessage, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrBadTransfer)
	}
	fromKey, err := DecodeAddress(from)
	if err != nil {
		return nil, fmt.Errorf("%w: sender: %v", ErrBadTransfer, err)
	}
	toKey, err := DecodeAddress(to)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %v", ErrBadTransfer, err)
	}
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, fmt.Errorf("%w: malformed recent blockhash", ErrBadTransfer)
	}
	return &TransferMessage{
		From:            fromKey,
		To:              toKey,
		Lamports:        lamports,
		RecentBlockhash: blockhash,
	}, nil
}

// Serialize renders the legacy message format: header, compact account list,
// recent blockhash, compact instruction list. These are the bytes that get
// signed.
func (m *TransferMessage) Serialize() []byte {
	selfTransfer := string(m.From) == string(m.To)

	var buf []byte

	// Header: one required signature, no read-only signed accounts, one
	// read-only unsigned account (the system program).
	buf = append(buf, 1, 0, 1)

	// Account keys.
	if selfTransfer {
		buf = appendCompactU16(buf, 2)
		buf = append(buf, m.From...)
	} else {
		buf = appendCompactU16(buf, 3)
		buf = append(buf, m.From...)
		buf = append(buf, m.To...)
	}
	buf = append(buf, systemProgramID...)

	buf = append(buf, m.RecentBlockhash...)

	// One instruction: system program transfer.
	buf = appendCompactU16(buf, 1)
	programIndex := byte(2)
	toIndex := byte(1)
	if selfTransfer {
		programIndex = 1
		toIndex = 0
	}
	buf = append(buf, programIndex)
	buf = appendCompactU16(buf, 2)
	buf = append(buf, 0, toIndex)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], m.Lamports)
	buf = appendCompactU16(buf, uint16(len(data)))
	buf = append(buf, data...)

	return buf
}

// Base64 returns the serialized message base64-encoded, the form fee
// estimation expects.
func (m *TransferMessage) Base64() string {
	return base64.StdEncoding.EncodeToString(m.Serialize())
}

// SignedTransaction assembles the wire transaction from the message and its
// signature, base64-encoded for submission.
func SignedTransaction(message, signature []byte) (string, error) {
	if len(signature) != ed25519.SignatureSize {
		return "", fmt.Errorf("%w: signature must be %d bytes, got %d",
			ErrBadTransfer, ed25519.SignatureSize, len(signature))
	}
	var buf []byte
	buf = appendCompactU16(buf, 1)
	buf = append(buf, signature...)
	buf = append(buf, message...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// appendCompactU16 appends the compact-u16 (shortvec) encoding used by the
// wire format for array lengths.
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		if v < 0x80 {
			return append(buf, byte(v))
		}
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
