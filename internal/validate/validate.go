// Package validate holds the pure shape predicates for inbound payloads.
// The predicates run on decoded generic JSON, so a field of the wrong
// type is a validation failure (400 "Bad bug data.") rather than a JSON
// parse failure.
package validate

const (
	maxAuthorLen      = 64
	maxTitleLen       = 128
	maxDescriptionLen = 1000
	maxMessageLen     = 500
)

// Record reports whether payload is a well-formed record body: an object
// with string author, title and description within the length limits.
func Record(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	author, ok := obj["author"].(string)
	if !ok || len(author) > maxAuthorLen {
		return false
	}
	title, ok := obj["title"].(string)
	if !ok || len(title) > maxTitleLen {
		return false
	}
	description, ok := obj["description"].(string)
	if !ok || len(description) > maxDescriptionLen {
		return false
	}
	return true
}

// Comment reports whether payload is a well-formed comment body: an
// object with string author and message within the length limits.
func Comment(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	author, ok := obj["author"].(string)
	if !ok || len(author) > maxAuthorLen {
		return false
	}
	message, ok := obj["message"].(string)
	if !ok || len(message) > maxMessageLen {
		return false
	}
	return true
}
