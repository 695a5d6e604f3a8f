package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// Parse decodes a batch response, keeping filename entries in the order the
// server wrote them.
func Parse(data []byte) (*BatchResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("response is not a JSON object")
	}

	res := &BatchResult{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read value of %q: %w", key, err)
		}
		switch key {
		case constants.KeyTimeTaken:
			err = json.Unmarshal(raw, &res.TimeTaken)
		case constants.KeyImageCount:
			err = json.Unmarshal(raw, &res.ImageCount)
		case constants.KeyCacheHits:
			err = json.Unmarshal(raw, &res.CacheHits)
		case constants.KeyCacheMisses:
			err = json.Unmarshal(raw, &res.CacheMisses)
		default:
			var v string
			err = json.Unmarshal(raw, &v)
			res.Results = append(res.Results, Entry{Key: key, Value: v})
		}
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read response end: %w", err)
	}
	return res, nil
}

// CheckCounts verifies the aggregate invariants of a response.
func (b *BatchResult) CheckCounts() error {
	if b.CacheHits+b.CacheMisses != b.ImageCount {
		return fmt.Errorf("cache_hits (%d) + cache_misses (%d) != image_count (%d)", b.CacheHits, b.CacheMisses, b.ImageCount)
	}
	if len(b.Results) != b.ImageCount {
		return fmt.Errorf("%d results for %d images", len(b.Results), b.ImageCount)
	}
	return nil
}

// Tally counts outcomes by kind.
func (b *BatchResult) Tally() map[entity.OutcomeKind]int {
	out := make(map[entity.OutcomeKind]int, 3)
	for _, e := range b.Results {
		out[entity.ParseRendered(e.Value).Kind]++
	}
	return out
}
