package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	SystemProgramID     = solana.SystemProgramID
	TokenProgramID      = solana.TokenProgramID
	Token2022ProgramID  = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	MemoProgramIDSPL    = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

const (
	SystemProgramTransferInstruction = uint32(2)

	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// signatureToDomain builds a Transaction from signature list metadata only.
func signatureToDomain(sig *rpc.TransactionSignature) *Transaction {
	txn := &Transaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}
	if sig.BlockTime != nil {
		txn.BlockTime = sig.BlockTime.Time()
	}
	if sig.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", sig.Err)
		txn.Err = &errMsg
	}
	return txn
}

// parseTransactionFromResult extracts lamports, parties, token mint and memo
// from the transaction instructions.
func parseTransactionFromResult(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (*Transaction, error) {
	txn := signatureToDomain(sig)
	if sig.Err != nil || result == nil || result.Transaction == nil {
		return txn, nil
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(SystemProgramID):
			transfer, err := parseSystemTransfer(instruction, accountKeys)
			if err != nil {
				continue
			}
			txn.Lamports = transfer.amount
			txn.FromAddress = keyString(transfer.from)
			txn.ToAddress = keyString(transfer.to)

		case programID.Equals(TokenProgramID) || programID.Equals(Token2022ProgramID):
			transfer, err := parseTokenTransfer(instruction, accountKeys)
			if err != nil {
				continue
			}
			txn.Lamports = transfer.amount
			if transfer.mint != nil {
				txn.TokenMint = keyString(transfer.mint)
			}
			txn.FromAddress = keyString(transfer.from)
			txn.ToAddress = keyString(transfer.to)

		case programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy):
			if memo := parseMemo(instruction.Data); memo != "" {
				txn.Memo = &memo
			}
		}
	}

	return txn, nil
}

type parsedTransfer struct {
	amount uint64
	mint   *solana.PublicKey
	from   *solana.PublicKey
	to     *solana.PublicKey
}

// parseSystemTransfer decodes a System Program Transfer.
// Data layout: [0..4] instruction type (u32), [4..12] lamports (u64).
// Accounts: [from, to].
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (parsedTransfer, error) {
	if len(instruction.Data) < 12 {
		return parsedTransfer{}, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}
	if kind := binary.LittleEndian.Uint32(instruction.Data[0:4]); kind != SystemProgramTransferInstruction {
		return parsedTransfer{}, fmt.Errorf("not a transfer instruction: type %d", kind)
	}

	return parsedTransfer{
		amount: binary.LittleEndian.Uint64(instruction.Data[4:12]),
		from:   accountAt(instruction, accountKeys, 0),
		to:     accountAt(instruction, accountKeys, 1),
	}, nil
}

// parseTokenTransfer decodes SPL Transfer and TransferChecked instructions.
// Transfer accounts are [source, destination, authority]; TransferChecked
// accounts are [source, mint, destination, authority]. The authority is
// reported as the sender since token accounts are not wallets.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (parsedTransfer, error) {
	if len(instruction.Data) == 0 {
		return parsedTransfer{}, fmt.Errorf("empty instruction data")
	}

	switch instruction.Data[0] {
	case TokenProgramTransferInstruction:
		if len(instruction.Data) < 9 {
			return parsedTransfer{}, fmt.Errorf("transfer instruction data too short")
		}
		return parsedTransfer{
			amount: binary.LittleEndian.Uint64(instruction.Data[1:9]),
			from:   accountAt(instruction, accountKeys, 2),
			to:     accountAt(instruction, accountKeys, 1),
		}, nil

	case TokenProgramTransferCheckedInstruction:
		if len(instruction.Data) < 10 {
			return parsedTransfer{}, fmt.Errorf("transferChecked instruction data too short")
		}
		if len(instruction.Accounts) < 4 {
			return parsedTransfer{}, fmt.Errorf("transferChecked missing accounts")
		}
		mint := accountAt(instruction, accountKeys, 1)
		if mint == nil {
			return parsedTransfer{}, fmt.Errorf("mint account index out of bounds")
		}
		return parsedTransfer{
			amount: binary.LittleEndian.Uint64(instruction.Data[1:9]),
			mint:   mint,
			from:   accountAt(instruction, accountKeys, 3),
			to:     accountAt(instruction, accountKeys, 2),
		}, nil

	default:
		return parsedTransfer{}, fmt.Errorf("unknown token instruction type: %d", instruction.Data[0])
	}
}

func accountAt(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey, i int) *solana.PublicKey {
	if i >= len(instruction.Accounts) {
		return nil
	}
	idx := int(instruction.Accounts[i])
	if idx >= len(accountKeys) {
		return nil
	}
	key := accountKeys[idx]
	return &key
}

func keyString(key *solana.PublicKey) *string {
	if key == nil {
		return nil
	}
	s := key.String()
	return &s
}

// parseMemo returns the memo text. Memos are either plain UTF-8 or base64.
func parseMemo(data []byte) string {
	memo := string(data)
	if decoded, err := base64.StdEncoding.DecodeString(memo); err == nil && isPrintable(decoded) {
		return string(decoded)
	}
	return memo
}

func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
