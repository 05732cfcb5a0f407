package backend

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const BoltPingStoreFileName = "pings.db"

var (
	pingsBucket    = []byte("pingsBucket")    // pingID => ping_bytes
	txIndexBucket  = []byte("txIndexBucket")  // lowercase tx hash => pingID
	websitesBucket = []byte("websitesBucket") // websiteID => bucket[pingID]nil
	txRecordBucket = []byte("txRecordBucket") // lowercase tx hash => tx_record_bytes
)

var ErrTxAlreadyUsed = errors.New("transaction hash already used")

type (
	BoltPingStore struct {
		db *bolt.DB
	}

	BoltPingStoreTx struct {
		db *BoltPingStore
		tx *bolt.Tx
	}
)

// NewBoltPingStore creates new on-disk persistent storage for ping records
// using bolt db. If the file does not exist then it will be created, however,
// parent directories must exist beforehand.
func NewBoltPingStore(dbFile string) (*BoltPingStore, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second}) // -rw-------
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt DB: %w", err)
	}
	s := &BoltPingStore{db: db}
	if err := s.createBuckets(); err != nil {
		return nil, fmt.Errorf("failed to create db buckets: %w", err)
	}
	return s, nil
}

func (s *BoltPingStore) WithTransaction(fn func(txc PingStoreTx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&BoltPingStoreTx{db: s, tx: tx})
	})
}

func (s *BoltPingStore) Do() PingStoreTx {
	return &BoltPingStoreTx{db: s, tx: nil}
}

func (s *BoltPingStore) Close() error {
	return s.db.Close()
}

// AddPing stores the ping and indexes it by website and transaction hash.
// The tx hash index doubles as the duplicate payment guard: a second ping
// with an already recorded hash fails with ErrTxAlreadyUsed.
func (s *BoltPingStoreTx) AddPing(ping *Ping) (uint64, error) {
	var id uint64
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		txKey := txHashKey(ping.TxHash)
		if tx.Bucket(txIndexBucket).Get(txKey) != nil {
			return ErrTxAlreadyUsed
		}
		seq, err := tx.Bucket(pingsBucket).NextSequence()
		if err != nil {
			return err
		}
		ping.ID = seq
		pingBytes, err := json.Marshal(ping)
		if err != nil {
			return err
		}
		idKey := pingIDKey(seq)
		if err := tx.Bucket(pingsBucket).Put(idKey, pingBytes); err != nil {
			return err
		}
		if err := tx.Bucket(txIndexBucket).Put(txKey, idKey); err != nil {
			return err
		}
		websiteBucket, err := tx.Bucket(websitesBucket).CreateBucketIfNotExists([]byte(ping.WebsiteID))
		if err != nil {
			return err
		}
		if err := websiteBucket.Put(idKey, nil); err != nil {
			return err
		}
		id = seq
		return nil
	}, true)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *BoltPingStoreTx) GetPing(id uint64) (*Ping, error) {
	var ping *Ping
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		p, err := s.getPing(tx, pingIDKey(id))
		if err != nil {
			return err
		}
		ping = p
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ping, nil
}

// GetPings returns up to limit most recent pings for the given website, or
// across all websites if websiteID is empty.
func (s *BoltPingStoreTx) GetPings(websiteID string, limit int) ([]*Ping, error) {
	var pings []*Ping
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		if websiteID == "" {
			c := tx.Bucket(pingsBucket).Cursor()
			for k, v := c.Last(); k != nil && len(pings) < limit; k, v = c.Prev() {
				ping := &Ping{}
				if err := json.Unmarshal(v, ping); err != nil {
					return err
				}
				pings = append(pings, ping)
			}
			return nil
		}
		idBucket := tx.Bucket(websitesBucket).Bucket([]byte(websiteID))
		if idBucket == nil {
			return nil
		}
		c := idBucket.Cursor()
		for k, _ := c.Last(); k != nil && len(pings) < limit; k, _ = c.Prev() {
			ping, err := s.getPing(tx, k)
			if err != nil {
				return err
			}
			if ping == nil {
				return fmt.Errorf("ping in website index not found in primary bucket id=%x", k)
			}
			pings = append(pings, ping)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return pings, nil
}

func (s *BoltPingStoreTx) IsTxHashUsed(txHash string) (bool, error) {
	var used bool
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		used = tx.Bucket(txIndexBucket).Get(txHashKey(txHash)) != nil
		return nil
	}, false)
	return used, err
}

func (s *BoltPingStoreTx) AddTxRecord(rec *TxRecord) error {
	return s.withTx(s.tx, func(tx *bolt.Tx) error {
		recBytes, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(txRecordBucket).Put(txHashKey(rec.TxHash), recBytes)
	}, true)
}

func (s *BoltPingStoreTx) GetTxRecords() ([]*TxRecord, error) {
	var recs []*TxRecord
	err := s.withTx(s.tx, func(tx *bolt.Tx) error {
		return tx.Bucket(txRecordBucket).ForEach(func(_, v []byte) error {
			rec := &TxRecord{}
			if err := json.Unmarshal(v, rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *BoltPingStoreTx) getPing(tx *bolt.Tx, idKey []byte) (*Ping, error) {
	pingBytes := tx.Bucket(pingsBucket).Get(idKey)
	if pingBytes == nil {
		return nil, nil
	}
	ping := &Ping{}
	if err := json.Unmarshal(pingBytes, ping); err != nil {
		return nil, err
	}
	return ping, nil
}

func (s *BoltPingStoreTx) withTx(dbTx *bolt.Tx, myFunc func(tx *bolt.Tx) error, writeTx bool) error {
	if dbTx != nil {
		return myFunc(dbTx)
	} else if writeTx {
		return s.db.db.Update(myFunc)
	} else {
		return s.db.db.View(myFunc)
	}
}

func (s *BoltPingStore) createBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{pingsBucket, txIndexBucket, websitesBucket, txRecordBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

func pingIDKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func txHashKey(txHash string) []byte {
	return []byte(strings.ToLower(txHash))
}
