package storage

import (
	"fmt"
	"net/http"
	"time"

	"mm/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketItems   = []byte("items")
	bucketCookies = []byte("cookies")
)

// Well-known item names.
const (
	ItemRedirect = "mm_redirect"
	ItemNotify   = "mm_notify"
)

// BboltStorage is the client's local storage: session cookies and a few
// named items that must survive a restart.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketItems); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketCookies); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SetItem stores a named value.
func (s *BboltStorage) SetItem(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		item := &DBItem{Name: name, Value: value}
		data, err := item.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketItems).Put(item.Key(), data)
	})
}

// GetItem returns a named value or models.ErrNotFound.
func (s *BboltStorage) GetItem(name string) (string, error) {
	var item DBItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketItems).Get([]byte(name))
		if data == nil {
			return models.ErrNotFound
		}
		return item.UnmarshalBinary(data)
	})
	return item.Value, err
}

func (s *BboltStorage) RemoveItem(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketItems).Delete([]byte(name))
	})
}

// UpsertCookies merges cookies set by host into the stored set. Cookies are
// matched by name and path; deleted or expired cookies are dropped.
func (s *BboltStorage) UpsertCookies(scheme, host string, cookies []*http.Cookie) error {
	now := time.Now()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCookies)
		set := &DBCookieSet{Scheme: scheme, Host: host}
		if data := b.Get(set.Key()); data != nil {
			if err := set.UnmarshalBinary(data); err != nil {
				return fmt.Errorf("corrupt cookies for %s: %w", host, err)
			}
			set.Scheme = scheme
		}

		for _, c := range cookies {
			dbc := fromHTTPCookie(c)
			kept := set.Cookies[:0]
			for _, old := range set.Cookies {
				if old.Name != dbc.Name || old.Path != dbc.Path {
					kept = append(kept, old)
				}
			}
			set.Cookies = kept
			if c.MaxAge < 0 || dbc.expired(now) {
				continue
			}
			set.Cookies = append(set.Cookies, dbc)
		}

		data, err := set.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(set.Key(), data)
	})
}

// ListCookies returns every stored, unexpired cookie set.
func (s *BboltStorage) ListCookies() ([]DBCookieSet, error) {
	now := time.Now()
	var sets []DBCookieSet
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCookies).ForEach(func(k, v []byte) error {
			var set DBCookieSet
			if err := set.UnmarshalBinary(v); err != nil {
				return err
			}
			live := set.Cookies[:0]
			for _, c := range set.Cookies {
				if !c.expired(now) {
					live = append(live, c)
				}
			}
			set.Cookies = live
			sets = append(sets, set)
			return nil
		})
	})
	return sets, err
}

// ClearCookies forgets every stored cookie.
func (s *BboltStorage) ClearCookies() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketCookies); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketCookies)
		return err
	})
}
