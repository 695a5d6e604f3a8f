package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// Item is one processed image in arrival order.
type Item struct {
	Filename string
	Outcome  entity.Outcome
	CacheHit bool
}

// Entry is one filename/value pair of the response, in arrival order.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BatchResult is the response for one batch. It marshals to a single JSON
// object whose filename keys come first, in arrival order, followed by the
// aggregate keys.
type BatchResult struct {
	Results     []Entry
	TimeTaken   float64
	ImageCount  int
	CacheHits   int
	CacheMisses int
}

// Build renders outcomes and computes the aggregates. Filenames are made
// unique: repeats and names equal to an aggregate key get " (2)", " (3)", ...
// appended, and empty names become "image_<n>".
func Build(items []Item, start, end time.Time) *BatchResult {
	res := &BatchResult{
		Results:    make([]Entry, 0, len(items)),
		TimeTaken:  roundSeconds(end.Sub(start)),
		ImageCount: len(items),
	}
	used := make(map[string]struct{}, len(items))
	for i, it := range items {
		key := uniqueKey(it.Filename, i, used)
		used[key] = struct{}{}
		res.Results = append(res.Results, Entry{Key: key, Value: it.Outcome.Render()})
		if it.CacheHit {
			res.CacheHits++
		} else {
			res.CacheMisses++
		}
	}
	return res
}

func roundSeconds(d time.Duration) float64 {
	if d < 0 {
		d = 0
	}
	return math.Round(d.Seconds()*100) / 100
}

func uniqueKey(name string, index int, used map[string]struct{}) string {
	if name == "" {
		name = "image_" + strconv.Itoa(index+1)
	}
	taken := func(k string) bool {
		if _, ok := constants.ReservedKeys[k]; ok {
			return true
		}
		_, ok := used[k]
		return ok
	}
	if !taken(name) {
		return name
	}
	for n := 2; ; n++ {
		k := name + " (" + strconv.Itoa(n) + ")"
		if !taken(k) {
			return k
		}
	}
}

// Get returns the value stored under key.
func (b *BatchResult) Get(key string) (string, bool) {
	for _, e := range b.Results {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

func (b *BatchResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKey := func(k string) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		return nil
	}
	for _, e := range b.Results {
		if err := writeKey(e.Key); err != nil {
			return nil, err
		}
		vb, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	if err := writeKey(constants.KeyTimeTaken); err != nil {
		return nil, err
	}
	buf.WriteString(strconv.FormatFloat(b.TimeTaken, 'f', 2, 64))
	for _, kv := range []struct {
		k string
		v int
	}{
		{constants.KeyImageCount, b.ImageCount},
		{constants.KeyCacheHits, b.CacheHits},
		{constants.KeyCacheMisses, b.CacheMisses},
	} {
		if err := writeKey(kv.k); err != nil {
			return nil, err
		}
		buf.WriteString(strconv.Itoa(kv.v))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
