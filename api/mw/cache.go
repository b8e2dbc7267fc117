package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const cacheHeader = "X-Cache"

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GETs for the same URI from store. Only 2xx
// responses are kept.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, ok := store.Get(key); ok {
			hit := v.(cachedResponse)
			for k, vals := range hit.headers {
				c.Writer.Header()[k] = vals
			}
			c.Writer.Header().Set(cacheHeader, "HIT")
			c.Writer.WriteHeader(hit.status)
			_, _ = c.Writer.Write(hit.body)
			c.Abort()
			return
		}

		rw := &recordingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Writer.Header().Set(cacheHeader, "MISS")

		c.Next()

		if status := rw.Status(); status >= 200 && status < 300 {
			headers := rw.Header().Clone()
			headers.Del(cacheHeader)
			store.Set(key, cachedResponse{
				status:  status,
				headers: headers,
				body:    append([]byte(nil), rw.body.Bytes()...),
			}, ttl)
		}
	}
}
