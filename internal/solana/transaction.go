package solana

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// SystemProgram is the native program that owns plain SOL accounts.
const SystemProgram = "11111111111111111111111111111111"

// systemTransferIndex is the instruction tag of SystemProgram::Transfer.
const systemTransferIndex uint32 = 2

// appendShortVec appends a compact-u16 length prefix.
func appendShortVec(buf []byte, n int) []byte {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// decodeShortVec reads a compact-u16 length prefix and reports how many
// bytes it consumed.
func decodeShortVec(data []byte) (int, int, error) {
	var value, shift uint
	for i := 0; i < len(data) && i < 3; i++ {
		b := data[i]
		value |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(value), i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("truncated compact-u16")
}

// BuildTransferMessage constructs an unsigned legacy transaction message
// moving lamports from one system account to another. The recent blockhash
// is the freshness token that keeps the transaction replayable only within
// the network's validity window.
func BuildTransferMessage(from, to string, lamports uint64, recentBlockhash string) ([]byte, error) {
	fromKey, err := DecodeAddress(from)
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	toKey, err := DecodeAddress(to)
	if err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, fmt.Errorf("recent blockhash must be a base58 32-byte value")
	}
	if lamports == 0 {
		return nil, fmt.Errorf("lamports must be positive")
	}

	programKey, _ := base58.Decode(SystemProgram)

	// Account table: fee payer first, then writable recipient, then the
	// readonly program. A self-transfer collapses to a single signer slot.
	selfTransfer := bytes.Equal(fromKey, toKey)

	var keys [][]byte
	var toIndex byte
	if selfTransfer {
		keys = [][]byte{fromKey, programKey}
		toIndex = 0
	} else {
		keys = [][]byte{fromKey, toKey, programKey}
		toIndex = 1
	}
	programIndex := byte(len(keys) - 1)

	var msg []byte
	// Header: one required signature, no readonly signed accounts, one
	// readonly unsigned account (the program).
	msg = append(msg, 1, 0, 1)

	msg = appendShortVec(msg, len(keys))
	for _, key := range keys {
		msg = append(msg, key...)
	}

	msg = append(msg, blockhash...)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	msg = appendShortVec(msg, 1) // one instruction
	msg = append(msg, programIndex)
	msg = appendShortVec(msg, 2)
	msg = append(msg, 0, toIndex)
	msg = appendShortVec(msg, len(data))
	msg = append(msg, data...)

	return msg, nil
}

// SerializeTransaction prepends the signature table to a message. Signature
// order must match the order of signer accounts in the message.
func SerializeTransaction(message []byte, signatures [][]byte) ([]byte, error) {
	var tx []byte
	tx = appendShortVec(tx, len(signatures))
	for i, sig := range signatures {
		if len(sig) != SignatureLength {
			return nil, fmt.Errorf("signature %d has length %d", i, len(sig))
		}
		tx = append(tx, sig...)
	}
	return append(tx, message...), nil
}

// SignTransfer builds, signs and serializes a transfer in one step.
func SignTransfer(signer Keypair, to string, lamports uint64, recentBlockhash string) ([]byte, error) {
	message, err := BuildTransferMessage(signer.Address(), to, lamports, recentBlockhash)
	if err != nil {
		return nil, err
	}
	return SerializeTransaction(message, [][]byte{signer.Sign(message)})
}

// SignSerialized signs an externally built serialized transaction with the
// given keypairs, filling the signature slots that correspond to each
// signer's position in the message account table. Used for transactions
// returned by the token-creation builder, which arrive with empty
// signature slots.
func SignSerialized(raw []byte, signers []Keypair) ([]byte, error) {
	sigCount, n, err := decodeShortVec(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signature table: %w", err)
	}
	sigBytes := sigCount * SignatureLength
	if len(raw) < n+sigBytes {
		return nil, fmt.Errorf("transaction shorter than its signature table")
	}
	message := raw[n+sigBytes:]

	if len(message) < 3 {
		return nil, fmt.Errorf("transaction message truncated")
	}
	// A set high bit on the first message byte is a version prefix, not a
	// signer count.
	if message[0]&0x80 != 0 {
		return nil, fmt.Errorf("versioned transactions are not supported")
	}
	required := int(message[0])
	if sigCount != required {
		return nil, fmt.Errorf("signature table holds %d slots, message requires %d", sigCount, required)
	}

	keyCount, kn, err := decodeShortVec(message[3:])
	if err != nil {
		return nil, fmt.Errorf("parse account table: %w", err)
	}
	keysStart := 3 + kn
	if len(message) < keysStart+keyCount*AddressLength {
		return nil, fmt.Errorf("account table truncated")
	}
	if required > keyCount {
		return nil, fmt.Errorf("message requires %d signers but lists %d accounts", required, keyCount)
	}

	signatures := make([][]byte, required)
	for i := 0; i < required; i++ {
		start := n + i*SignatureLength
		signatures[i] = append([]byte(nil), raw[start:start+SignatureLength]...)
	}

	for _, signer := range signers {
		pub := signer.PublicKeyBytes()
		matched := false
		for i := 0; i < required; i++ {
			start := keysStart + i*AddressLength
			if bytes.Equal(message[start:start+AddressLength], pub) {
				signatures[i] = signer.Sign(message)
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("signer %s is not a required signer of this transaction", signer.Address())
		}
	}

	return SerializeTransaction(message, signatures)
}

// EncodeBase64 renders serialized transaction bytes for sendTransaction.
func EncodeBase64(tx []byte) string {
	return base64.StdEncoding.EncodeToString(tx)
}
