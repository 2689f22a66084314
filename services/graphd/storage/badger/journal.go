// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGraph/services/graphd/document"
	"github.com/AleutianAI/AleutianGraph/services/graphd/store"
)

// Key layout:
//
//	n/<id>        node record, the node's push-grammar document as JSON
//	o/<seq>       creation order, big-endian sequence -> id
//	meta/seq      badger.Sequence backing o/
const (
	nodePrefix   = "n/"
	orderPrefix  = "o/"
	seqKey       = "meta/seq"
	seqBandwidth = 128
)

// ErrCorruptRecord is returned by Load for records that cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt journal record")

// Journal implements store.Journal on BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Journal struct {
	db     *DB
	seq    *badger.Sequence
	logger *slog.Logger
}

// NewJournal wraps an open database.
func NewJournal(db *DB, logger *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("open journal sequence: %w", err)
	}
	return &Journal{db: db, seq: seq, logger: logger}, nil
}

// Close releases the order sequence. The database stays open.
func (j *Journal) Close() error {
	return j.seq.Release()
}

// Commit writes every node of one transaction in a single BadgerDB
// transaction.
//
// Description:
//
//	A node written for the first time also gets an order record, so Load
//	returns nodes in creation order. A record that cannot be encoded or
//	does not fit the transaction is reported as *store.NodeError.
//
// Thread Safety: Safe for concurrent use.
func (j *Journal) Commit(ctx context.Context, nodes []*store.Node) error {
	err := j.db.update(ctx, func(txn *badger.Txn) error {
		for _, n := range nodes {
			key := nodeKey(n.ID)

			_, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				if err := j.writeOrder(txn, n.ID); err != nil {
					return &store.NodeError{NodeID: n.ID, Err: err}
				}
			case err != nil:
				return &store.NodeError{NodeID: n.ID, Err: err}
			}

			val, err := document.Encode(document.ObjectValue(n.Document()))
			if err != nil {
				return &store.NodeError{NodeID: n.ID, Err: err}
			}
			if err := txn.Set(key, val); err != nil {
				return &store.NodeError{NodeID: n.ID, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal commit of %d nodes: %w", len(nodes), err)
	}
	recordJournalCommit(ctx, len(nodes))
	return nil
}

func (j *Journal) writeOrder(txn *badger.Txn, id string) error {
	n, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("next order sequence: %w", err)
	}
	return txn.Set(orderKey(n), []byte(id))
}

// Load reads every node in creation order.
//
// Description:
//
//	Used at startup to seed the store and by the dump command. Each node
//	is rebuilt from its own record, including its copy of every edge.
//
// Outputs:
//
//	[]*store.Node - Nodes in creation order.
//	error - ErrCorruptRecord (wrapped) if a record does not decode.
func (j *Journal) Load(ctx context.Context) ([]*store.Node, error) {
	var nodes []*store.Node
	err := j.db.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(orderPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			idBytes, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			id := string(idBytes)

			item, err := txn.Get(nodeKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				j.logger.Warn("journal order entry without record", slog.String("node_id", id))
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err := decodeNode(id, raw)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	return nodes, nil
}

func decodeNode(id string, raw []byte) (*store.Node, error) {
	doc, err := document.DecodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrCorruptRecord, id, err)
	}
	n, err := store.NodeFromDocument(id, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", ErrCorruptRecord, id, err)
	}
	return n, nil
}

func nodeKey(id string) []byte {
	return []byte(nodePrefix + id)
}

func orderKey(seq uint64) []byte {
	key := make([]byte, len(orderPrefix)+8)
	copy(key, orderPrefix)
	binary.BigEndian.PutUint64(key[len(orderPrefix):], seq)
	return key
}
