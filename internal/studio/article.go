package studio

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Article is one queued news segment.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// newArticle builds an article with a fresh id. An empty title becomes
// "News Segment N" where N is position, counted from one.
func newArticle(title, content string, position int) Article {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "News Segment " + strconv.Itoa(position)
	}
	return Article{ID: uuid.NewString(), Title: title, Content: content}
}

// Combine joins articles into the text handed to the generation pipeline.
//
// With directRead off each article contributes "title\ncontent" and the
// sections are separated by "\n\n---\n\n". With directRead on only the
// contents are used, separated by a blank line.
func Combine(articles []Article, directRead bool) string {
	parts := make([]string, len(articles))
	for i, a := range articles {
		if directRead {
			parts[i] = a.Content
		} else {
			parts[i] = a.Title + "\n" + a.Content
		}
	}
	if directRead {
		return strings.Join(parts, "\n\n")
	}
	return strings.Join(parts, "\n\n---\n\n")
}
