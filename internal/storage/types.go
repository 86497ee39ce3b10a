package storage

import (
	"encoding"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBItem is a local-storage entry (e.g. the post-login redirect target).
type DBItem struct {
	Name  string `msgpack:"name"`
	Value string `msgpack:"value"`
}

func (i *DBItem) Key() []byte {
	return []byte(i.Name)
}

func (i *DBItem) MarshalBinary() (data []byte, err error) {
	type alias DBItem
	return msgpack.Marshal((*alias)(i))
}

func (i *DBItem) UnmarshalBinary(data []byte) error {
	type alias DBItem
	return msgpack.Unmarshal(data, (*alias)(i))
}

type DBCookie struct {
	Name     string `msgpack:"name"`
	Value    string `msgpack:"value"`
	Path     string `msgpack:"path"`
	Domain   string `msgpack:"domain"`
	Expires  int64  `msgpack:"expires"` // Unix timestamp (seconds), 0 for session cookies
	Secure   bool   `msgpack:"secure"`
	HttpOnly bool   `msgpack:"httpOnly"`
}

// DBCookieSet holds every cookie the server set for one host.
type DBCookieSet struct {
	Scheme  string     `msgpack:"scheme"`
	Host    string     `msgpack:"host"`
	Cookies []DBCookie `msgpack:"cookies"`
}

func (c *DBCookieSet) Key() []byte {
	return []byte(c.Host)
}

func (c *DBCookieSet) MarshalBinary() (data []byte, err error) {
	type alias DBCookieSet
	return msgpack.Marshal((*alias)(c))
}

func (c *DBCookieSet) UnmarshalBinary(data []byte) error {
	type alias DBCookieSet
	return msgpack.Unmarshal(data, (*alias)(c))
}

func fromHTTPCookie(c *http.Cookie) DBCookie {
	dbc := DBCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	switch {
	case c.MaxAge > 0:
		dbc.Expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second).Unix()
	case !c.Expires.IsZero():
		dbc.Expires = c.Expires.Unix()
	}
	return dbc
}

func (c DBCookie) toHTTP() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	if c.Expires != 0 {
		hc.Expires = time.Unix(c.Expires, 0)
	}
	return hc
}

func (c DBCookie) expired(now time.Time) bool {
	return c.Expires != 0 && now.Unix() >= c.Expires
}
