package common

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/ocr-batch/constants"
	"github.com/joseph-ayodele/ocr-batch/internal/entity"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// BatchLimits are the all-or-nothing limits applied to an upload before any work is scheduled.
type BatchLimits struct {
	MaxImages    int
	MaxFileBytes int64
}

// DefaultBatchLimits returns the 50 image / 10 MiB limits.
func DefaultBatchLimits() BatchLimits {
	return BatchLimits{MaxImages: constants.DefaultMaxImages, MaxFileBytes: constants.DefaultMaxFileBytes}
}

// ItemRule checks one image of a batch.
type ItemRule func(item entity.ImageItem) *AppError

// ImageContentType rejects items whose declared content type is not image/*.
func ImageContentType(item entity.ImageItem) *AppError {
	ct := strings.ToLower(strings.TrimSpace(item.ContentType))
	if !strings.HasPrefix(ct, constants.ImageContentTypePrefix) {
		return NewAppError(CodeInvalidContentType,
			fmt.Sprintf("File %s is not an image", item.Filename),
			ErrInvalidInput)
	}
	return nil
}

// MaxFileSize rejects items larger than max bytes. Exactly max is accepted.
func MaxFileSize(max int64) ItemRule {
	return func(item entity.ImageItem) *AppError {
		size := item.Size
		if n := int64(len(item.Data)); n > size {
			size = n
		}
		if size > max {
			return NewAppError(CodeFileTooLarge,
				fmt.Sprintf("File %s exceeds maximum size of %dMB", item.Filename, max>>20),
				ErrTooLarge)
		}
		return nil
	}
}

// ValidateBatch applies the batch preconditions in order and returns the first
// failure: empty batch, too many images, then per item content type and size.
func ValidateBatch(items []entity.ImageItem, limits BatchLimits) error {
	if len(items) == 0 {
		return NewAppError(CodeEmptyBatch, "No images provided", ErrInvalidInput)
	}
	if limits.MaxImages > 0 && len(items) > limits.MaxImages {
		return NewAppError(CodeBatchTooLarge,
			fmt.Sprintf("Maximum %d images allowed per request", limits.MaxImages),
			ErrTooLarge)
	}
	rules := []ItemRule{ImageContentType}
	if limits.MaxFileBytes > 0 {
		rules = append(rules, MaxFileSize(limits.MaxFileBytes))
	}
	for _, item := range items {
		for _, rule := range rules {
			if err := rule(item); err != nil {
				return err
			}
		}
	}
	return nil
}
