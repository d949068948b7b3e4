package httpclient

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver registered for database/sql
	"github.com/pressly/goose/v3"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// cachedResponse is one row of the response_cache table: GET responses
// with status 200 are cached by (method, url, body-hash) for a
// configurable TTL.
type cachedResponse struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	StoredAt   time.Time
}

// ResponseCache is a durable, queryable GET-response cache backed by
// sqlite, migrated with goose, in place of a plain in-memory map, so
// cached responses survive across CLI invocations within one repository.
type ResponseCache struct {
	db *sql.DB
}

// OpenResponseCache opens (creating if absent) a sqlite database at path
// and migrates it to the current schema.
func OpenResponseCache(path string) (*ResponseCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "httpclient.OpenResponseCache", err)
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "httpclient.OpenResponseCache", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.IoError, "httpclient.OpenResponseCache", err)
	}
	return &ResponseCache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *ResponseCache) Close() error { return c.db.Close() }

// cacheKey hashes (method, url, body) into the cache's primary key.
func cacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response if present and not expired.
func (c *ResponseCache) Get(method, url string, body []byte) (cachedResponse, bool) {
	key := cacheKey(method, url, body)
	row := c.db.QueryRow(
		`SELECT status_code, body, headers, stored_at FROM response_cache WHERE cache_key = ? AND expires_at > ?`,
		key, time.Now().Unix(),
	)
	var status int
	var respBody []byte
	var headerJSON string
	var storedAt int64
	if err := row.Scan(&status, &respBody, &headerJSON, &storedAt); err != nil {
		return cachedResponse{}, false
	}
	var hdr http.Header
	if err := json.Unmarshal([]byte(headerJSON), &hdr); err != nil {
		return cachedResponse{}, false
	}
	return cachedResponse{StatusCode: status, Body: respBody, Header: hdr, StoredAt: time.Unix(storedAt, 0)}, true
}

// Put stores a response under (method, url, body) for ttl.
func (c *ResponseCache) Put(method, url string, body []byte, status int, respBody []byte, hdr http.Header, ttl time.Duration) error {
	key := cacheKey(method, url, body)
	headerJSON, err := json.Marshal(hdr)
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "httpclient.ResponseCache.Put", err)
	}
	now := time.Now()
	_, err = c.db.Exec(
		`INSERT INTO response_cache (cache_key, status_code, body, headers, stored_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET status_code=excluded.status_code, body=excluded.body,
		   headers=excluded.headers, stored_at=excluded.stored_at, expires_at=excluded.expires_at`,
		key, status, respBody, string(headerJSON), now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, fmt.Sprintf("httpclient.ResponseCache.Put(%s %s)", method, url), err)
	}
	return nil
}
