package machine

import (
	"encoding/json"
	"fmt"

	"github.com/cloakchain/gateway/foundation/chain/engine"
	"github.com/cloakchain/gateway/foundation/chain/mkvs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// accountRecord is the JSON encoding of an account inside the store.
type accountRecord struct {
	Nonce   uint64        `json:"nonce"`
	Balance uint64        `json:"balance"`
	Code    hexutil.Bytes `json:"code,omitempty"`
}

// accountKey returns the store key holding the specified account.
func accountKey(address common.Address) []byte {
	return []byte("account:" + address.Hex())
}

// storageKey returns the store key holding one slot of contract storage.
// With an active confidential context the slot bytes arrive already
// encrypted.
func storageKey(address common.Address, slot []byte) []byte {
	return append([]byte("storage:"+address.Hex()+":"), slot...)
}

// readAccount loads an account from the store. A missing account is the
// empty account, not an error.
func readAccount(store mkvs.MKVS, address common.Address) (engine.Account, error) {
	data := store.Get(accountKey(address))
	if data == nil {
		return engine.Account{}, nil
	}

	var record accountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return engine.Account{}, fmt.Errorf("decoding account %s: %w", address, err)
	}

	return engine.Account{
		Nonce:   record.Nonce,
		Balance: record.Balance,
		Code:    record.Code,
	}, nil
}

// writeAccount stores an account.
func writeAccount(store mkvs.MKVS, address common.Address, account engine.Account) error {
	record := accountRecord{
		Nonce:   account.Nonce,
		Balance: account.Balance,
		Code:    account.Code,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding account %s: %w", address, err)
	}

	store.Insert(accountKey(address), data)

	return nil
}
