package constants

// Rendered outcome strings. Clients distinguish success, no-text and error by
// these exact values and prefixes.
const (
	NoTextDetected         = "[NO TEXT DETECTED]"
	NoTextLowConfidence    = "[NO TEXT DETECTED - LOW CONFIDENCE]"
	OCRErrorPrefix         = "[OCR ERROR] "
	NoTextModelReply       = "NO_TEXT"
	DefaultMinConfidence   = 30.0
	DefaultTesseractPSM    = 3
	DefaultTesseractLang   = "eng"
	DefaultHeicConverter   = "magick"
	DefaultCacheTTLSeconds = 300
)

// Response keys reserved for batch aggregates.
const (
	KeyTimeTaken   = "Time Taken"
	KeyImageCount  = "image_count"
	KeyCacheHits   = "cache_hits"
	KeyCacheMisses = "cache_misses"
)

// ReservedKeys lists the response keys no filename may take.
var ReservedKeys = map[string]struct{}{
	KeyTimeTaken:   {},
	KeyImageCount:  {},
	KeyCacheHits:   {},
	KeyCacheMisses: {},
}

// Batch limits.
const (
	DefaultMaxImages     = 50
	DefaultMaxFileBytes  = 10 << 20
	DefaultPerMinute     = 10
	DefaultPerHour       = 100
	UploadFieldName      = "Images"
	ExtractTextPath      = "/api/v1/extract_text"
	CacheKeyPrefix       = "ocr:"
	ScopeSequenceCounter = "ocr:scope_seq"
)
