// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/omnibridge/settlement-core/bridge/cross"
)

var KEY = "transfer:%s:status"

type KeyValueReaderWriter interface {
	GetByKey(key []byte) ([]byte, error)
	SetByKey(key []byte, value []byte) error
}

// TransferStore persists the observable checkpoints of the per-transfer
// state machine, keyed by the transfer's transaction identifier.
type TransferStore struct {
	db KeyValueReaderWriter
}

func NewTransferStore(db KeyValueReaderWriter) *TransferStore {
	return &TransferStore{
		db: db,
	}
}

// StoreTransferStatus stores the current status per transfer
func (ts *TransferStore) StoreTransferStatus(transferId string, status cross.TransferStatus) error {
	key := bytes.Buffer{}
	keyS := fmt.Sprintf(KEY, transferId)
	key.WriteString(keyS)

	err := ts.db.SetByKey(key.Bytes(), []byte(status))
	if err != nil {
		return err
	}

	return nil
}

// TransferStatus returns the last stored status of a transfer
func (ts *TransferStore) TransferStatus(transferId string) (cross.TransferStatus, error) {
	key := bytes.Buffer{}
	keyS := fmt.Sprintf(KEY, transferId)
	key.WriteString(keyS)

	v, err := ts.db.GetByKey(key.Bytes())
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return cross.MissingTransfer, nil
		}
		return cross.MissingTransfer, err
	}

	return cross.TransferStatus(v), nil
}
