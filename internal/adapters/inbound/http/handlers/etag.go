package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	etagHeader        = "ETag"
	ifNoneMatchHeader = "If-None-Match"
)

// contentETag is a strong validator over the marshaled payload. The envelope
// meta carries per-request ids, so it never takes part in the hash.
func contentETag(data any) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`, nil
}

// notModified stamps the ETag on safe reads and reports whether the client
// copy is still current.
func notModified(w http.ResponseWriter, r *http.Request, status int, data any) bool {
	if status != http.StatusOK || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return false
	}

	etag, err := contentETag(data)
	if err != nil {
		return false
	}

	w.Header().Set(etagHeader, etag)

	if !etagMatches(r.Header.Get(ifNoneMatchHeader), etag) {
		return false
	}

	w.WriteHeader(http.StatusNotModified)

	return true
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}

	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	for candidate := range strings.SplitSeq(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}

	return false
}
