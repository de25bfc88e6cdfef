// Package validator checks content writes before they are persisted or
// published and reports every failing field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
)

// MaxItemsPerRequest bounds the items of one ContentRequest.
const MaxItemsPerRequest = 500

const (
	maxIDLength    = 255
	maxTitleLength = 1024
	maxBodyLength  = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateContentRequest checks an upsert batch. Fields of item i are
// reported as items[i].<field>.
func ValidateContentRequest(req *ingestion.ContentRequest) error {
	errs := make(map[string]string)
	if len(req.Items) == 0 {
		errs["items"] = "at least one item is required"
	} else if len(req.Items) > MaxItemsPerRequest {
		errs["items"] = fmt.Sprintf("at most %d items per request", MaxItemsPerRequest)
	}
	if strings.TrimSpace(req.ContentType) != req.ContentType {
		errs["contentType"] = "content type must not have surrounding whitespace"
	}

	seen := make(map[string]int, len(req.Items))
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		id := strings.TrimSpace(item.ID)
		switch {
		case id == "":
			errs[prefix+"id"] = "id is required"
		case len(id) > maxIDLength:
			errs[prefix+"id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
		default:
			if first, dup := seen[id]; dup {
				errs[prefix+"id"] = fmt.Sprintf("duplicates items[%d]", first)
			}
			seen[id] = i
		}
		if len(item.Title) > maxTitleLength || len(item.Question) > maxTitleLength {
			errs[prefix+"title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
		if len(item.Content)+len(item.Answer) > maxBodyLength {
			errs[prefix+"content"] = fmt.Sprintf("content must be at most %d characters", maxBodyLength)
		}
		if item.Difficulty != "" && !item.Difficulty.Valid() {
			errs[prefix+"difficulty"] = fmt.Sprintf("difficulty must be one of %v", helpsearch.Difficulties)
		}
		if item.Popularity < 0 {
			errs[prefix+"popularity"] = "popularity must not be negative"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateEvent checks a ContentEvent read from Kafka.
func ValidateEvent(event *ingestion.ContentEvent) error {
	errs := make(map[string]string)
	switch event.Op {
	case ingestion.OpUpsert:
		if err := ValidateContentRequest(&ingestion.ContentRequest{ContentType: event.ContentType, Items: event.Items}); err != nil {
			return err
		}
	case ingestion.OpDelete:
		if len(event.IDs) == 0 {
			errs["ids"] = "at least one id is required"
		}
	default:
		errs["op"] = fmt.Sprintf("unknown operation %q", event.Op)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
