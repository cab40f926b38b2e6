// Package reply implements the scripted assistant reply generator.
//
// Generate is a pure function over the submitted message and file
// descriptors; it performs no I/O and holds no state, so callers can
// test it without a store.
package reply

import (
	"fmt"
	"regexp"
	"strings"
)

// File describes an attached file for classification purposes.
type File struct {
	Name string
	Type string // MIME type
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Fixed replies for the keyword rules.
const (
	greetingReply  = "Hello! I'm your AI assistant. How can I help you today?"
	wellbeingReply = "I'm doing great, thank you for asking! I'm here to help you with any questions or tasks you have."
	helpReply      = "I'm here to help! You can ask me questions, have conversations, upload images and PDFs for discussion, or share URLs. What would you like to know or discuss?"
	urlReply       = "I can see you've shared a URL. I can help you discuss or analyze the content from that link. What would you like to know about it?"
)

// Generate maps a user message and its attached files to a reply.
// Rules are evaluated in order; the first match wins. A non-empty file
// list overrides all text-based rules.
func Generate(content string, files []File) string {
	if len(files) > 0 {
		return filesReply(content, files)
	}

	lower := strings.ToLower(content)

	if strings.Contains(lower, "hello") || strings.Contains(lower, "hi") {
		return greetingReply
	}

	if strings.Contains(lower, "how are you") {
		return wellbeingReply
	}

	if strings.Contains(lower, "help") {
		return helpReply
	}

	if urlPattern.MatchString(content) {
		return urlReply
	}

	// The echo is verbatim; quote characters in content pass through
	// unescaped.
	return fmt.Sprintf("Thank you for your message: \"%s\". I'm an AI assistant designed to help with various tasks, answer questions, and have meaningful conversations. How can I assist you further?", content)
}

// filesReply acknowledges attached files by their distinct
// classifications in first-seen order, echoing the message if present.
func filesReply(content string, files []File) string {
	seen := make(map[string]bool)
	var kinds []string
	for _, f := range files {
		kind := classify(f)
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}

	echo := ""
	if content != "" {
		echo = fmt.Sprintf("Regarding your message: \"%s\" - ", content)
	}

	return fmt.Sprintf("I can see you've shared %s file(s). %sI'm an AI assistant and I can help analyze and discuss the content you've shared. How would you like me to assist you with these files?",
		strings.Join(kinds, " and "), echo)
}

// classify buckets a file by its MIME type.
func classify(f File) string {
	switch {
	case strings.HasPrefix(f.Type, "image/"):
		return "image"
	case f.Type == "application/pdf":
		return "PDF"
	default:
		return "file"
	}
}
